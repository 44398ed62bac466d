// Package api exposes the orchestrator over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/FranksOps/shopscrape/internal/product"
)

// Scraper is the orchestration surface the handlers drive.
type Scraper interface {
	ScrapeProduct(ctx context.Context, req product.Request) product.Result
	ScrapeMultipleProducts(ctx context.Context, urls []string) []product.Result
}

// Config configures the HTTP surface.
type Config struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBatchSize    int
}

// Server serves the scrape API.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server; it does not start listening.
func NewServer(cfg Config, scraper Scraper, sources []product.SourceID, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, scraper, sources, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api listening", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// NewRouter wires routes and middleware.
func NewRouter(cfg Config, scraper Scraper, sources []product.SourceID, logger *slog.Logger) *chi.Mux {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 50
	}
	h := &handlers{
		scraper:      scraper,
		sources:      sources,
		validate:     validator.New(),
		logger:       logger,
		maxBatchSize: cfg.MaxBatchSize,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Get("/sources", h.listSources)
		r.Post("/scrape", h.scrape)
		r.Post("/scrape/batch", h.scrapeBatch)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
