package http

import (
	"fmt"
	"log/slog"
	nethttp "net/http"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/http/handlers"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/http/middleware"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
)

// RouterConfig collects the route handlers. Admin and Stream are optional.
type RouterConfig struct {
	Handler     *handlers.Handler
	Admin       *handlers.AdminHandler
	Stream      nethttp.Handler
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
	CORSOrigins []string
}

// NewRouter registers HTTP routes and wraps them with logging, CORS and
// panic recovery.
func NewRouter(cfg RouterConfig) nethttp.Handler {
	h := cfg.Handler
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health)
	r.HandleFunc("/ready", h.Ready)
	r.HandleFunc("/scoreboard", h.Scoreboard)
	r.HandleFunc("/scoreboard/game", h.CurrentGame)
	if cfg.Admin != nil {
		r.HandleFunc("/scoreboard/reset", cfg.Admin.Reset)
	}
	if cfg.Stream != nil {
		r.Handle("/scoreboard/stream", cfg.Stream).Methods(nethttp.MethodGet)
	}
	r.NotFoundHandler = nethttp.HandlerFunc(h.NotFound)

	var out nethttp.Handler = middleware.LoggingMiddleware(cfg.Logger, cfg.Metrics, r)
	out = ghandlers.CORS(
		ghandlers.AllowedOrigins(cfg.CORSOrigins),
		ghandlers.AllowedMethods([]string{nethttp.MethodGet, nethttp.MethodPost, nethttp.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
		ghandlers.ExposedHeaders([]string{"X-Request-ID"}),
	)(out)
	out = ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(recoveryLogger{logger: cfg.Logger}),
		ghandlers.PrintRecoveryStack(false),
	)(out)
	return out
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("handler panic", slog.String("panic", fmt.Sprint(v...)))
}
