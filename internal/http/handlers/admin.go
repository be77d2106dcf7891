package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/app/scoreboard"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/http/requestutil"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
)

// AdminHandler exposes operator endpoints guarded by a bearer token.
type AdminHandler struct {
	svc    *scoreboard.Service
	token  string
	logger *slog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc *scoreboard.Service, token string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:    svc,
		token:  token,
		logger: logger,
	}
}

// Reset clears the board immediately. Returns 401 without a valid
// ADMIN_TOKEN bearer.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}
	if !h.authorize(r) {
		logging.Warn(h.logger, "admin unauthorized",
			slog.String(logging.FieldPath, r.URL.Path),
			slog.String("client_ip", requestutil.ClientIP(r)),
		)
		writeError(w, r, http.StatusUnauthorized, "unauthorized", h.logger)
		return
	}

	logger := loggerFromContext(r, h.logger)
	view, err := h.svc.Reset(r.Context())
	if err != nil {
		logging.Warn(logger, "admin reset failed", slog.Any("err", err))
		switch {
		case errors.Is(err, scoreboard.ErrResetUnavailable), errors.Is(err, engine.ErrStopped):
			writeError(w, r, http.StatusServiceUnavailable, "reset unavailable", logger)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, r, http.StatusServiceUnavailable, "reset timed out", logger)
		default:
			writeError(w, r, http.StatusInternalServerError, "reset failed", logger)
		}
		return
	}

	logging.Info(logger, "admin reset applied", slog.Uint64("version", view.Version))
	writeJSON(w, http.StatusOK, view, logger)
}

func (h *AdminHandler) authorize(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got, ok := requestutil.BearerToken(r)
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
