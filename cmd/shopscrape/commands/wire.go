package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/shopscrape/internal/adapter"
	"github.com/FranksOps/shopscrape/internal/browser"
	"github.com/FranksOps/shopscrape/internal/config"
	"github.com/FranksOps/shopscrape/internal/fingerprint"
	"github.com/FranksOps/shopscrape/internal/journal"
	"github.com/FranksOps/shopscrape/internal/journal/backend"
	"github.com/FranksOps/shopscrape/internal/orchestrator"
	"github.com/FranksOps/shopscrape/internal/robots"
	"github.com/FranksOps/shopscrape/internal/source"
	"github.com/FranksOps/shopscrape/pkg/proxy"
	"github.com/FranksOps/shopscrape/pkg/ratelimit"
	"github.com/FranksOps/shopscrape/pkg/useragent"
)

// app is the wired process: one limiter, one registry, one orchestrator.
type app struct {
	orch    *orchestrator.Orchestrator
	router  *source.Router
	limiter *ratelimit.Limiter
	journal journal.Backend
}

func (a *app) Close() error {
	a.limiter.Stop()
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	agents := useragent.NewPool(nil)
	if cfg.Browser.UserAgentsFile != "" {
		loaded, err := useragent.LoadFile(cfg.Browser.UserAgentsFile)
		if err != nil {
			return nil, fmt.Errorf("load user agents: %w", err)
		}
		agents = loaded
	}

	proxies, err := newProxyPool(cfg.Browser)
	if err != nil {
		return nil, err
	}

	launcher, err := newLauncher(cfg.Browser, proxies, logger)
	if err != nil {
		return nil, err
	}

	registry, err := adapter.NewRegistryFromRules(adapter.DefaultRules(), adapter.Config{
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ContentTimeout:    cfg.Browser.ContentTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
	}, launcher, agents, logger)
	if err != nil {
		return nil, fmt.Errorf("register adapters: %w", err)
	}

	jrnl, err := backend.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	deps := orchestrator.Deps{
		Router:   source.NewRouter(nil),
		Adapters: registry,
		Journal:  jrnl,
		Logger:   logger,
	}
	if cfg.Scrape.RespectRobots {
		auditor, err := robots.NewAuditor(robots.Config{}, logger)
		if err != nil {
			closeJournal(jrnl, logger)
			return nil, err
		}
		deps.Robots = auditor
	}

	limiter := ratelimit.NewLimiter(cfg.Scrape.MinInterval, cfg.Scrape.Jitter)
	deps.Limiter = limiter

	orch, err := orchestrator.New(orchestrator.Config{
		BatchDelay:      cfg.Scrape.BatchDelay,
		RobotsUserAgent: cfg.Scrape.RobotsUserAgent,
	}, deps)
	if err != nil {
		limiter.Stop()
		closeJournal(jrnl, logger)
		return nil, err
	}

	logger.Info("scraper ready",
		"browser", cfg.Browser.Driver,
		"min_interval", cfg.Scrape.MinInterval,
		"sources", registry.Sources(),
		"journal", cfg.Journal.Driver,
		"robots", cfg.Scrape.RespectRobots,
	)
	if proxies != nil {
		logger.Info("proxy pool loaded", "proxies", proxies.Stats().Total)
	}

	return &app{orch: orch, router: deps.Router, limiter: limiter, journal: jrnl}, nil
}

// newProxyPool returns nil when no proxies are configured.
func newProxyPool(cfg config.BrowserConfig) (*proxy.Pool, error) {
	if len(cfg.Proxies) == 0 && cfg.ProxiesFile == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(cfg.Proxies...); err != nil {
		return nil, fmt.Errorf("load proxies: %w", err)
	}
	if cfg.ProxiesFile != "" {
		if err := pool.LoadFile(cfg.ProxiesFile); err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
	}
	if pool.Len() == 0 {
		return nil, nil
	}
	return pool, nil
}

func newLauncher(cfg config.BrowserConfig, proxies *proxy.Pool, logger *slog.Logger) (browser.Launcher, error) {
	switch cfg.Driver {
	case config.BrowserHTTP:
		profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
		if err != nil {
			return nil, err
		}
		return browser.NewHTTPLauncher(browser.HTTPConfig{
			Fingerprint: profile,
			ProxyPool:   proxies,
			Logger:      logger,
		}), nil
	case config.BrowserChrome:
		return browser.NewChromeLauncher(browser.ChromeConfig{
			ExecPath:  cfg.ChromePath,
			Headful:   cfg.Headful,
			NoSandbox: cfg.NoSandbox,
			ProxyPool: proxies,
			Logger:    logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

func closeJournal(j journal.Backend, logger *slog.Logger) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		logger.Warn("failed to close journal", "err", err)
	}
}
