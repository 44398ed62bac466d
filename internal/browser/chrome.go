package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/FranksOps/shopscrape/pkg/proxy"
)

// ChromeConfig configures the headless Chrome launcher.
type ChromeConfig struct {
	// ExecPath overrides Chrome discovery.
	ExecPath  string
	Headful   bool
	NoSandbox bool
	ProxyPool *proxy.Pool
	Logger    *slog.Logger
}

// ChromeLauncher starts a fresh headless Chrome process per session, so
// cookies, storage and cache never carry over between scrapes.
type ChromeLauncher struct {
	cfg ChromeConfig
}

func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ChromeLauncher{cfg: cfg}
}

func (l *ChromeLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1366, 768),
		chromedp.Flag("headless", !l.cfg.Headful),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if l.cfg.ProxyPool != nil {
		if u := l.cfg.ProxyPool.Next(); u != nil {
			allocOpts = append(allocOpts, chromedp.ProxyServer(u.String()))
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the browser; doing it here ties the process to
	// the session rather than to a per-render timeout context.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}

	return &chromeSession{
		ctx:  browserCtx,
		opts: opts,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		logger: l.cfg.Logger,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	opts   Options
	cancel context.CancelFunc
	logger *slog.Logger

	once sync.Once
}

func (s *chromeSession) Render(ctx context.Context, rawURL, readyMarker string) (*Page, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	start := time.Now()

	navCtx, cancelNav := context.WithTimeout(s.ctx, s.opts.NavigationTimeout)
	defer cancelNav()
	stopNav := context.AfterFunc(ctx, cancelNav)
	defer stopNav()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.opts.SettleDelay),
	)
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrNavigationTimeout, rawURL)
		}
		return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}

	page := &Page{URL: rawURL}

	contentCtx, cancelContent := context.WithTimeout(s.ctx, s.opts.ContentTimeout)
	defer cancelContent()
	stopContent := context.AfterFunc(ctx, cancelContent)
	defer stopContent()

	actions := []chromedp.Action{chromedp.Location(&page.FinalURL)}
	if readyMarker != "" {
		actions = append(actions, chromedp.WaitVisible(readyMarker, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery))

	if err := chromedp.Run(contentCtx, actions...); err != nil {
		s.snapshot(page)
		page.Duration = time.Since(start)
		if errors.Is(contentCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return page, fmt.Errorf("%w: marker %q on %s", ErrContentTimeout, readyMarker, rawURL)
		}
		return page, fmt.Errorf("browser: read %s: %w", rawURL, err)
	}

	page.Duration = time.Since(start)
	return page, nil
}

// snapshot captures whatever the tab shows, so a challenge page served in
// place of the product can still be recognized.
func (s *chromeSession) snapshot(page *Page) {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery)); err != nil {
		s.logger.Debug("page snapshot failed", "url", page.URL, "err", err)
	}
}

func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
