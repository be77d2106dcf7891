package handlers

import (
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/app/scoreboard"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
)

// Handler serves the read-only scoreboard routes.
type Handler struct {
	svc      *scoreboard.Service
	logger   *slog.Logger
	statusFn func() engine.Status
}

// NewHandler constructs a Handler. statusFn may be nil.
func NewHandler(svc *scoreboard.Service, logger *slog.Logger, statusFn func() engine.Status) *Handler {
	return &Handler{
		svc:      svc,
		logger:   logger,
		statusFn: statusFn,
	}
}

// Health reports the service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}
	if err := r.Context().Err(); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports whether the feed subscription is healthy.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}
	if h.statusFn == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	status := h.statusFn()
	if status.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	msg := status.LastError
	if msg == "" {
		msg = "not ready"
	}
	writeError(w, r, http.StatusServiceUnavailable, msg, h.logger)
}

// Scoreboard returns the full scoreboard view.
func (h *Handler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.View(), loggerFromContext(r, h.logger))
}

// CurrentGame returns the game in play.
func (h *Handler) CurrentGame(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.CurrentGame(), loggerFromContext(r, h.logger))
}

// NotFound writes a JSON 404.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not found", h.logger)
}
