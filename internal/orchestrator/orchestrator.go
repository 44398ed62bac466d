// Package orchestrator runs product scrapes through the shared rate limiter
// and turns every outcome, including panics, into a product.Result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/shopscrape/internal/adapter"
	"github.com/FranksOps/shopscrape/internal/journal"
	"github.com/FranksOps/shopscrape/internal/metrics"
	"github.com/FranksOps/shopscrape/internal/product"
	"github.com/FranksOps/shopscrape/internal/source"
)

const (
	MessageSucceeded = "Product scraped successfully"
	MessageUnknown   = "Unknown error occurred"
)

// Error types recorded in the journal and the attempts metric.
const (
	ErrorTypeInvalidURL        = "invalid_url"
	ErrorTypeUnsupportedSource = "unsupported_source"
	ErrorTypeRobots            = "robots_disallowed"
	ErrorTypeInvalidProduct    = "invalid_product"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypePanic             = "panic"
	ErrorTypeExtraction        = "extraction"
)

// Limiter serializes scrapes and spaces their starts.
type Limiter interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Adapters resolves the adapter for a source.
type Adapters interface {
	Lookup(src product.SourceID) (adapter.Adapter, bool)
}

// RobotsChecker reports whether a URL may be fetched.
type RobotsChecker interface {
	IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error)
}

// Config tunes orchestration.
type Config struct {
	// BatchDelay is the pause between consecutive batch items, on top of
	// the limiter spacing. Zero disables it.
	BatchDelay time.Duration
	// RobotsUserAgent is the agent robots.txt groups are matched against.
	RobotsUserAgent string
	// JournalTimeout bounds a single journal write.
	JournalTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Journal and Robots are optional.
type Deps struct {
	Router   *source.Router
	Adapters Adapters
	Limiter  Limiter
	Journal  journal.Backend
	Robots   RobotsChecker
	Logger   *slog.Logger
}

// Orchestrator runs single and batch scrapes. It is safe for concurrent use;
// the limiter keeps scrapes from overlapping.
type Orchestrator struct {
	cfg      Config
	router   *source.Router
	adapters Adapters
	limiter  Limiter
	journal  journal.Backend
	robots   RobotsChecker
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Adapters == nil {
		return nil, errors.New("orchestrator: adapters are required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("orchestrator: limiter is required")
	}
	if deps.Router == nil {
		deps.Router = source.NewRouter(nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RobotsUserAgent == "" {
		cfg.RobotsUserAgent = "*"
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = 5 * time.Second
	}

	return &Orchestrator{
		cfg:      cfg,
		router:   deps.Router,
		adapters: deps.Adapters,
		limiter:  deps.Limiter,
		journal:  deps.Journal,
		robots:   deps.Robots,
		logger:   deps.Logger,
	}, nil
}

// ScrapeProduct scrapes one product. It never panics; every failure is
// reported through the returned Result. Invalid URLs are rejected before a
// limiter slot is taken.
func (o *Orchestrator) ScrapeProduct(ctx context.Context, req product.Request) product.Result {
	entry := journal.NewEntry(req.URL, time.Now())
	defer o.record(ctx, entry)

	if _, err := o.router.Classify(req.URL); err != nil {
		entry.ErrorType = ErrorTypeInvalidURL
		return o.fail(entry, "Invalid URL: "+err.Error())
	}

	var res product.Result
	queued := time.Now()
	err := o.limiter.Do(ctx, func(ctx context.Context) error {
		granted := time.Now()
		metrics.RecordLimiterWait(granted.Sub(queued))
		res = o.scrape(ctx, req, entry)
		entry.Duration = time.Since(granted)
		return nil
	})
	if err != nil {
		entry.ErrorType = ErrorTypeCancelled
		return o.fail(entry, "Scrape not started: "+err.Error())
	}
	return res
}

// scrape runs inside the limiter slot.
func (o *Orchestrator) scrape(ctx context.Context, req product.Request, entry *journal.Entry) (res product.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scrape panicked", "url", req.URL, "panic", r)
			entry.ErrorType = ErrorTypePanic
			res = o.fail(entry, fmt.Sprint(r))
		}
	}()

	src, err := o.router.Resolve(req)
	if err != nil {
		entry.ErrorType = ErrorTypeUnsupportedSource
		return o.fail(entry, unsupportedMessage(err))
	}
	entry.Source = string(src)

	if o.robots != nil {
		allowed, err := o.robots.IsAllowed(ctx, req.URL, o.cfg.RobotsUserAgent)
		if err != nil {
			o.logger.Warn("robots check failed", "url", req.URL, "err", err)
		} else if !allowed {
			entry.ErrorType = ErrorTypeRobots
			return o.fail(entry, "Disallowed by robots.txt: "+req.URL)
		}
	}

	a, ok := o.adapters.Lookup(src)
	if !ok {
		entry.ErrorType = ErrorTypeUnsupportedSource
		return o.fail(entry, fmt.Sprintf("Unsupported source %q: no adapter registered", src))
	}

	o.logger.Info("scraping product", "url", req.URL, "source", src)
	p, err := a.Extract(ctx, req.URL)
	if err != nil {
		classify(entry, err)
		return o.fail(entry, err.Error())
	}
	if err := p.Validate(); err != nil {
		entry.ErrorType = ErrorTypeInvalidProduct
		return o.fail(entry, err.Error())
	}

	entry.Success = true
	entry.ProductID = p.ID
	return product.Succeeded(p, MessageSucceeded)
}

// ScrapeMultipleProducts scrapes urls one after another and returns one
// result per url, in input order. A failed item never affects the next.
// Items left when ctx is cancelled are reported as failures.
func (o *Orchestrator) ScrapeMultipleProducts(ctx context.Context, urls []string) []product.Result {
	results := make([]product.Result, 0, len(urls))
	if len(urls) == 0 {
		return results
	}
	metrics.RecordBatch(len(urls))

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			results = append(results, product.Failed("Batch cancelled: "+err.Error()))
			continue
		}

		res := o.ScrapeProduct(ctx, product.Request{URL: u})
		results = append(results, res)
		if !res.Success {
			o.logger.Warn("batch item failed", "index", i, "url", u, "err", res.Error)
		}

		if i < len(urls)-1 && o.cfg.BatchDelay > 0 {
			timer := time.NewTimer(o.cfg.BatchDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}
	return results
}

func (o *Orchestrator) fail(entry *journal.Entry, msg string) product.Result {
	if strings.TrimSpace(msg) == "" {
		msg = MessageUnknown
	}
	entry.Error = msg
	return product.Failed(msg)
}

func (o *Orchestrator) record(ctx context.Context, entry *journal.Entry) {
	metrics.RecordScrape(entry)

	if entry.Success {
		o.logger.Info("product scraped", "url", entry.URL, "source", entry.Source, "id", entry.ProductID, "duration", entry.Duration)
	} else {
		o.logger.Warn("scrape failed", "url", entry.URL, "source", entry.Source, "type", entry.ErrorType, "err", entry.Error)
	}

	if o.journal == nil {
		return
	}
	// A cancelled request still gets its attempt journaled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.JournalTimeout)
	defer cancel()
	if err := o.journal.Save(ctx, entry); err != nil {
		o.logger.Warn("journal write failed", "id", entry.ID, "err", err)
	}
}

func classify(entry *journal.Entry, err error) {
	var failure *adapter.ScrapeFailure
	switch {
	// Adapters wrap cancellation in a ScrapeFailure; the caller's cancellation wins.
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		entry.ErrorType = ErrorTypeCancelled
	case errors.As(err, &failure):
		entry.ErrorType = string(failure.Reason)
		if failure.Detection != "" {
			entry.DetectedBot = true
			entry.DetectionSrc = failure.Detection
		}
	default:
		entry.ErrorType = ErrorTypeExtraction
	}
}

func unsupportedMessage(err error) string {
	var use *source.UnsupportedSourceError
	if !errors.As(err, &use) {
		return "Unsupported source: " + err.Error()
	}
	names := make([]string, len(use.Supported))
	for i, s := range use.Supported {
		names[i] = string(s)
	}
	return fmt.Sprintf("Unsupported source %q (supported: %s)", use.Input, strings.Join(names, ", "))
}
