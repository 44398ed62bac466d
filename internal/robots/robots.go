// Package robots checks product URLs against the retailer's robots.txt.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/FranksOps/shopscrape/pkg/httpclient"
)

const (
	DefaultCacheSize = 64
	DefaultTTL       = 6 * time.Hour
	DefaultTimeout   = 10 * time.Second

	maxRobotsBytes = 512 << 10
)

// Config configures an Auditor.
type Config struct {
	CacheSize int
	TTL       time.Duration
	Timeout   time.Duration
	// Transport is used for robots.txt fetches; nil uses the default transport.
	Transport http.RoundTripper
}

// Auditor fetches, caches and enforces robots.txt per host. Fetch failures
// are treated as "allow everything" but are not cached, so the next scrape
// retries; only a definitive answer (a parsed file or status >= 400) is kept.
type Auditor struct {
	client  *httpclient.Client
	timeout time.Duration
	logger  *slog.Logger
	cache  *expirable.LRU[string, *robotstxt.RobotsData]
	group  singleflight.Group
}

// NewAuditor creates a new instance.
func NewAuditor(cfg Config, logger *slog.Logger) (*Auditor, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		Transport:    cfg.Transport,
		Headers:      http.Header{"Accept": {"text/plain,*/*;q=0.8"}},
	})
	if err != nil {
		return nil, fmt.Errorf("robots: create client: %w", err)
	}

	return &Auditor{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
		cache:   expirable.NewLRU[string, *robotstxt.RobotsData](cfg.CacheSize, nil, cfg.TTL),
	}, nil
}

// IsAllowed determines if the given URL is allowed by the host's robots.txt for the provided User-Agent.
func (a *Auditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("robots: invalid url %q", targetURL)
	}

	host := u.Scheme + "://" + u.Host

	data, err := a.getOrFetch(ctx, host)
	if err != nil {
		a.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(userAgent).Test(path), nil
}

func (a *Auditor) getOrFetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	if data, ok := a.cache.Get(host); ok {
		return data, nil
	}

	// The shared fetch outlives any single caller's context.
	ch := a.group.DoChan(host, func() (any, error) {
		if data, ok := a.cache.Get(host); ok {
			return data, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		data, err := a.fetch(fetchCtx, host)
		if err != nil {
			return nil, err
		}
		// A nil result means the host has no robots.txt.
		a.cache.Add(host, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*robotstxt.RobotsData), nil
	}
}

func (a *Auditor) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	resp, err := a.client.Get(ctx, host+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return parsed, nil
}
