package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/shopscrape/internal/fingerprint"
	"github.com/FranksOps/shopscrape/internal/metrics"
	"github.com/FranksOps/shopscrape/pkg/httpclient"
	"github.com/FranksOps/shopscrape/pkg/proxy"
)

const maxBodyBytes = 16 << 20

// HTTPConfig configures the plain-HTTP launcher.
type HTTPConfig struct {
	// Fingerprint selects the TLS hello; ProfileAuto follows the session UA.
	Fingerprint  fingerprint.Profile
	MaxRedirects int
	ProxyPool    *proxy.Pool
	Logger       *slog.Logger
}

// HTTPLauncher renders pages without executing JavaScript. Each session gets
// its own client, cookie jar and (when a pool is configured) proxy, so nothing
// leaks between calls. It suits retailers that server-render product pages.
type HTTPLauncher struct {
	cfg HTTPConfig
}

// NewHTTPLauncher creates a launcher. Zero values select sensible defaults.
func NewHTTPLauncher(cfg HTTPConfig) *HTTPLauncher {
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileAuto
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPLauncher{cfg: cfg}
}

func (l *HTTPLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	opts = opts.withDefaults()

	profile := l.cfg.Fingerprint
	if profile == fingerprint.ProfileAuto {
		profile = fingerprint.ForUserAgent(opts.UserAgent)
	}

	var activeProxy *url.URL
	if l.cfg.ProxyPool != nil {
		activeProxy = l.cfg.ProxyPool.Next()
	}
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if activeProxy != nil {
			return activeProxy, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(profile, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("browser: setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      opts.NavigationTimeout,
		MaxRedirects: l.cfg.MaxRedirects,
		UseCookieJar: true,
		UserAgent:    opts.UserAgent,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: create client: %w", err)
	}

	return &httpSession{
		client: client,
		proxy:  activeProxy,
		pool:   l.cfg.ProxyPool,
		logger: l.cfg.Logger,
	}, nil
}

type httpSession struct {
	client *httpclient.Client
	proxy  *url.URL
	pool   *proxy.Pool
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (s *httpSession) Render(ctx context.Context, rawURL, readyMarker string) (*Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	start := time.Now()
	resp, err := s.client.Get(ctx, rawURL)
	if err != nil {
		s.markProxy(false)
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrNavigationTimeout, rawURL, err)
		}
		return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.markProxy(false)
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrContentTimeout, rawURL, err)
		}
		return nil, fmt.Errorf("browser: read %s: %w", rawURL, err)
	}
	s.markProxy(true)

	page := &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		HTML:       string(body),
		Duration:   time.Since(start),
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return page, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if readyMarker != "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return page, fmt.Errorf("browser: parse %s: %w", rawURL, err)
		}
		if doc.Find(readyMarker).Length() == 0 {
			return page, fmt.Errorf("%w: %q on %s", ErrMarkerNotFound, readyMarker, rawURL)
		}
	}

	return page, nil
}

func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

func (s *httpSession) markProxy(ok bool) {
	if s.pool == nil || s.proxy == nil {
		return
	}
	var err error
	if ok {
		err = s.pool.MarkSuccess(s.proxy)
	} else {
		metrics.RecordProxyFailure(s.proxy.Redacted())
		err = s.pool.MarkFailure(s.proxy)
	}
	if err != nil {
		s.logger.Debug("proxy health update failed", "proxy", s.proxy.Redacted(), "err", err)
	}
}
