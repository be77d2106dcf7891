package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/app/scoreboard"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/config"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	httpserver "github.com/preston-bernstein/mlp-scoreboard-service/internal/http"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/http/handlers"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/store"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/stream"
)

var metricsSetup = metrics.Setup

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         *store.MemoryStore
	scoreboard    *scoreboard.Service
	hub           *stream.Hub
	httpServer    httpServer
	metricsServer httpServer
	runner        Runner
	metricsStop   func(context.Context) error
}

// New constructs a server with the feed selected by cfg.Feed.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	return newServerWithMetrics(cfg, logger, nil, nil)
}

func newServerWithFeed(cfg config.Config, logger *slog.Logger, source feed.Feed) (*Server, error) {
	return newServerWithMetrics(cfg, logger, source, nil)
}

func newServerWithMetrics(cfg config.Config, logger *slog.Logger, source feed.Feed, recorder *metrics.Recorder) (*Server, error) {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)

	if source == nil {
		built, err := newFeedFactory(logger, recorder).build(cfg.Feed)
		if err != nil {
			if metricsShutdown != nil {
				_ = metricsShutdown(context.Background())
			}
			return nil, err
		}
		source = built
	}

	memoryStore := store.NewMemoryStore()
	hub := stream.NewHub(stream.Config{
		Source:         memoryStore,
		SendBuffer:     cfg.Stream.SendBuffer,
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         logger,
		Metrics:        recorder,
	})
	runner := engine.NewRunner(engine.RunnerConfig{
		Engine: engine.New(engine.Config{
			ResetAfter:        cfg.Engine.ResetAfter,
			HighlightDuration: cfg.Engine.HighlightDuration,
			Logger:            logger,
		}),
		Feed:         source,
		Filter:       feed.Filter{EventID: cfg.EventID, CourtID: cfg.CourtID},
		Sink:         memoryStore,
		Publisher:    hub,
		Logger:       logger,
		Metrics:      recorder,
		TickInterval: cfg.Engine.TickInterval,
	})
	svc := scoreboard.NewService(memoryStore, runner)
	httpSrv := buildHTTPServer(cfg, svc, hub, logger, recorder, runner)

	logger.Info("scoreboard configured",
		slog.String(logging.FieldSource, source.Name()),
		slog.String(logging.FieldEventID, cfg.EventID),
		slog.String(logging.FieldCourtID, cfg.CourtID),
	)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         memoryStore,
		scoreboard:    svc,
		hub:           hub,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		runner:        runner,
		metricsStop:   metricsShutdown,
	}, nil
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, httpSrv httpServer, runner Runner) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpSrv,
		runner:     runner,
	}
}

func buildHTTPServer(cfg config.Config, svc *scoreboard.Service, hub *stream.Hub, logger *slog.Logger, recorder *metrics.Recorder, runner Runner) httpServer {
	var statusFn func() engine.Status
	if runner != nil {
		statusFn = runner.Status
	}

	routes := httpserver.RouterConfig{
		Handler:     handlers.NewHandler(svc, logger, statusFn),
		Logger:      logger,
		Metrics:     recorder,
		CORSOrigins: cfg.CORSOrigins,
	}
	// Reset is only mounted when a token is configured.
	if cfg.AdminToken != "" {
		routes.Admin = handlers.NewAdminHandler(svc, cfg.AdminToken, logger)
	}
	if hub != nil {
		routes.Stream = hub
	}

	return newAPIServer(":"+cfg.Port, httpserver.NewRouter(routes))
}

// Run starts the engine loop and HTTP server, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.runner.Start(ctx)

	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("shutdown signal received")
	}

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	if s.logger != nil {
		s.logger.Info("http server starting", slog.String("addr", s.httpServer.Addr()))
	}
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	if s.logger != nil {
		s.logger.Info("metrics server starting", slog.String("addr", s.metricsServer.Addr()))
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics shutdown failed", "error", err)
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if err := s.runner.Stop(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("failed to stop engine runner", "error", err)
	}

	// Hijacked stream connections are not closed by http.Server.Shutdown.
	if s.hub != nil {
		s.hub.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
	}

	if s.logger != nil {
		s.logger.Info("shutdown complete")
	}
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics setup failed, continuing without telemetry", "err", err)
		}
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = newMetricsServer(cfg.Metrics.Addr(), handler)
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if logger != nil {
			logger.Info("starting "+name+" server", slog.String("addr", srv.Addr()))
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Warn(name+" server failed", "error", err)
			}
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}
