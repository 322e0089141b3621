package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transitrisk/internal/config"
	"transitrisk/internal/dashboard"
	"transitrisk/internal/handler"
)

// Server is the HTTP server for the dashboard.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new Server with all routes registered.
func New(cfg *config.Config, session *dashboard.Session, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := handler.New(session, cfg, logger)

	// Pages
	mux.HandleFunc("GET /", h.Home)
	mux.HandleFunc("POST /predict", h.PredictPage)

	// API
	mux.HandleFunc("GET /api/kpis", h.KPIs)
	mux.HandleFunc("GET /api/trend", h.Trend)
	mux.HandleFunc("GET /api/hourly", h.Hourly)
	mux.HandleFunc("GET /api/stops", h.Stops)
	mux.HandleFunc("GET /api/preview", h.Preview)
	mux.HandleFunc("GET /api/export.csv", h.ExportCSV)
	mux.HandleFunc("GET /api/export.xlsx", h.ExportXLSX)
	mux.HandleFunc("POST /api/predict", h.Predict)

	// Ops
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
