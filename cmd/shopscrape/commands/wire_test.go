package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FranksOps/shopscrape/internal/browser"
	"github.com/FranksOps/shopscrape/internal/config"
)

func TestSetupLogger(t *testing.T) {
	logger := setupLogger(config.LogConfig{Level: "warn", Format: "json"}, io.Discard)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = setupLogger(config.LogConfig{Level: "debug", Format: "text"}, io.Discard)
	require.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLauncher(t *testing.T) {
	cfg := config.Default().Browser

	cfg.Driver = config.BrowserHTTP
	l, err := newLauncher(cfg, nil, slog.Default())
	require.NoError(t, err)
	require.IsType(t, &browser.HTTPLauncher{}, l)

	cfg.Driver = config.BrowserChrome
	l, err = newLauncher(cfg, nil, slog.Default())
	require.NoError(t, err)
	require.IsType(t, &browser.ChromeLauncher{}, l)

	cfg.Driver = "lynx"
	_, err = newLauncher(cfg, nil, slog.Default())
	require.Error(t, err)

	cfg.Driver = config.BrowserHTTP
	cfg.Fingerprint = "netscape"
	_, err = newLauncher(cfg, nil, slog.Default())
	require.Error(t, err)
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.Driver = config.BrowserHTTP
	cfg.Browser.Proxies = []string{"http://127.0.0.1:3128"}
	cfg.Scrape.RespectRobots = true
	cfg.Journal.Driver = "json"
	cfg.Journal.DSN = t.TempDir() + "/journal.ndjson"

	a, err := newApp(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, a.journal)
	require.Len(t, a.router.Supported(), 2)
	require.NoError(t, a.Close())
}

func TestNewProxyPool(t *testing.T) {
	cfg := config.Default().Browser

	pool, err := newProxyPool(cfg)
	require.NoError(t, err)
	require.Nil(t, pool)

	file := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(file, []byte("# office\n10.0.0.2:8080\n\n"), 0o600))
	cfg.Proxies = []string{"http://10.0.0.1:3128"}
	cfg.ProxiesFile = file

	pool, err = newProxyPool(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, pool.Stats().Total)

	cfg.Proxies = []string{"ftp://10.0.0.3"}
	_, err = newProxyPool(cfg)
	require.Error(t, err)
}
