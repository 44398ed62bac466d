package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FranksOps/shopscrape/internal/journal"
)

var (
	ScrapeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopscrape_scrape_attempts_total",
			Help: "Total number of product scrape attempts",
		},
		[]string{"source", "status", "error_type", "detected", "detection_src"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopscrape_scrape_duration_seconds",
			Help:    "Duration of product scrapes in seconds, excluding limiter wait",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"source"},
	)

	PageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopscrape_page_bytes_total",
			Help: "Total bytes of rendered HTML across all scrapes",
		},
		[]string{"source"},
	)

	LimiterWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopscrape_limiter_wait_seconds",
			Help:    "Time spent queued in the rate limiter before a scrape started",
			Buckets: []float64{0, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopscrape_batch_size",
			Help:    "Number of URLs per batch request",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopscrape_proxy_failures_total",
			Help: "Total number of proxy failures during page renders",
		},
		[]string{"proxy_url"},
	)
)

// RecordScrape updates the metrics from a journal entry.
func RecordScrape(entry *journal.Entry) {
	if entry == nil {
		return
	}

	source := entry.Source
	if source == "" {
		source = "unknown"
	}
	status := "success"
	if !entry.Success {
		status = "failure"
	}

	ScrapeAttemptsTotal.WithLabelValues(source, status, entry.ErrorType, strconv.FormatBool(entry.DetectedBot), entry.DetectionSrc).Inc()
	// Attempts rejected before a limiter slot have no duration.
	if entry.Duration > 0 {
		ScrapeDuration.WithLabelValues(source).Observe(entry.Duration.Seconds())
	}
}

// RecordPageBytes counts rendered page bytes for source.
func RecordPageBytes(source string, n int) {
	PageBytesTotal.WithLabelValues(source).Add(float64(n))
}

// RecordLimiterWait observes how long a scrape waited for its slot.
func RecordLimiterWait(d time.Duration) {
	LimiterWait.Observe(d.Seconds())
}

// RecordBatch observes the size of a batch request.
func RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// RecordProxyFailure counts a failed render through proxyURL.
func RecordProxyFailure(proxyURL string) {
	ProxyFailures.WithLabelValues(proxyURL).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	s := New(port)
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := s.ListenAndServe(); err != nil {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return s
}

// New creates the metrics server without starting it.
func New(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe blocks serving /metrics. It returns nil after Stop.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
