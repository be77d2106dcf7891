package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrListen is a canned listener failure for StubServer.ListenErr.
var ErrListen = errors.New("listen failure")

// StubServer stands in for the API and metrics servers. The zero value
// listens and shuts down without error on ":0".
type StubServer struct {
	Address     string
	Routes      http.Handler
	ListenErr   error
	ShutdownErr error
	// Release, when set, makes Shutdown wait until it is closed or the
	// shutdown context ends.
	Release chan struct{}

	mu        sync.Mutex
	listens   int
	shutdowns int
}

func (s *StubServer) ListenAndServe() error {
	s.mu.Lock()
	s.listens++
	err := s.ListenErr
	s.mu.Unlock()
	return err
}

func (s *StubServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdowns++
	s.mu.Unlock()

	if s.Release == nil {
		return s.ShutdownErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Release:
		return s.ShutdownErr
	}
}

func (s *StubServer) Addr() string {
	if s.Address == "" {
		return ":0"
	}
	return s.Address
}

func (s *StubServer) Handler() http.Handler {
	if s.Routes == nil {
		return http.NotFoundHandler()
	}
	return s.Routes
}

// Calls returns how many times ListenAndServe and Shutdown ran.
func (s *StubServer) Calls() (listens, shutdowns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listens, s.shutdowns
}
