package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// shutdownGrace bounds how long in-flight requests get after shutdown starts.
const shutdownGrace = 15 * time.Second

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Moderator      Moderator
	Images         ImageGenerator

	// Checks are run by GET /readyz, keyed by the dependency they probe.
	Checks map[string]ReadinessCheck
}

type Server struct {
	Router *chi.Mux
	addr   string
	logger *slog.Logger
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "moderation-gateway")
	})

	h := &handlers{moderator: cfg.Moderator, images: cfg.Images, checks: cfg.Checks, logger: logger}
	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/moderations", h.moderate)
		r.Get("/moderations/stats", h.stats)
		r.Delete("/moderations/cache", h.invalidate)
		r.Post("/images", h.generateImage)
	})

	return &Server{
		Router: r,
		addr:   cfg.Addr,
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
