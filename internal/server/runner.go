package server

import (
	"context"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
)

// Runner defines the minimal engine loop behavior needed by the server.
type Runner interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Status() engine.Status
	RequestReset(ctx context.Context) error
}
