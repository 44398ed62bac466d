// Package config loads service configuration from an optional file and
// SHOPSCRAPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/shopscrape/internal/fingerprint"
	"github.com/FranksOps/shopscrape/internal/journal/backend"
)

// EnvPrefix prefixes every environment override, e.g. SHOPSCRAPE_SCRAPE_MIN_INTERVAL.
const EnvPrefix = "SHOPSCRAPE"

const (
	BrowserChrome = "chrome"
	BrowserHTTP   = "http"
)

// Config holds the service configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Browser BrowserConfig `mapstructure:"browser"`
	Journal JournalConfig `mapstructure:"journal"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type ScrapeConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	Jitter      float64       `mapstructure:"jitter"`
	// BatchDelay is the extra pause between batch items.
	BatchDelay      time.Duration `mapstructure:"batch_delay"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
	RobotsUserAgent string        `mapstructure:"robots_user_agent"`
}

type BrowserConfig struct {
	Driver            string        `mapstructure:"driver"` // chrome or http
	ChromePath        string        `mapstructure:"chrome_path"`
	Headful           bool          `mapstructure:"headful"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ContentTimeout    time.Duration `mapstructure:"content_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	UserAgentsFile    string        `mapstructure:"user_agents_file"`
	Proxies           []string      `mapstructure:"proxies"`
	ProxiesFile       string        `mapstructure:"proxies_file"`
}

type JournalConfig struct {
	Driver string `mapstructure:"driver"` // none, sqlite, postgres or json
	DSN    string `mapstructure:"dsn"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxBatchSize:    50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Scrape: ScrapeConfig{
			MinInterval:     2 * time.Second,
			Jitter:          0,
			BatchDelay:      2 * time.Second,
			RespectRobots:   false,
			RobotsUserAgent: "*",
		},
		Browser: BrowserConfig{
			Driver:            BrowserChrome,
			Fingerprint:       string(fingerprint.ProfileAuto),
			NavigationTimeout: 30 * time.Second,
			ContentTimeout:    10 * time.Second,
			SettleDelay:       500 * time.Millisecond,
		},
		Journal: JournalConfig{
			Driver: backend.DriverNone,
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)

	v.SetDefault("scrape.min_interval", d.Scrape.MinInterval)
	v.SetDefault("scrape.jitter", d.Scrape.Jitter)
	v.SetDefault("scrape.batch_delay", d.Scrape.BatchDelay)
	v.SetDefault("scrape.respect_robots", d.Scrape.RespectRobots)
	v.SetDefault("scrape.robots_user_agent", d.Scrape.RobotsUserAgent)

	v.SetDefault("browser.driver", d.Browser.Driver)
	v.SetDefault("browser.chrome_path", d.Browser.ChromePath)
	v.SetDefault("browser.headful", d.Browser.Headful)
	v.SetDefault("browser.no_sandbox", d.Browser.NoSandbox)
	v.SetDefault("browser.fingerprint", d.Browser.Fingerprint)
	v.SetDefault("browser.navigation_timeout", d.Browser.NavigationTimeout)
	v.SetDefault("browser.content_timeout", d.Browser.ContentTimeout)
	v.SetDefault("browser.settle_delay", d.Browser.SettleDelay)
	v.SetDefault("browser.user_agents_file", d.Browser.UserAgentsFile)
	v.SetDefault("browser.proxies", d.Browser.Proxies)
	v.SetDefault("browser.proxies_file", d.Browser.ProxiesFile)

	v.SetDefault("journal.driver", d.Journal.Driver)
	v.SetDefault("journal.dsn", d.Journal.DSN)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr cannot be empty"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server request timeout must be positive"))
	}
	if c.Server.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("server max batch size must be positive"))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics port out of range: %d", c.Metrics.Port))
	}

	if c.Scrape.MinInterval < 0 {
		errs = append(errs, errors.New("scrape min interval cannot be negative"))
	}
	if c.Scrape.Jitter < 0 || c.Scrape.Jitter > 1 {
		errs = append(errs, fmt.Errorf("scrape jitter must be within [0, 1], got %v", c.Scrape.Jitter))
	}
	if c.Scrape.BatchDelay < 0 {
		errs = append(errs, errors.New("scrape batch delay cannot be negative"))
	}

	if c.Browser.Driver != BrowserChrome && c.Browser.Driver != BrowserHTTP {
		errs = append(errs, fmt.Errorf("browser driver must be %s or %s, got %q", BrowserChrome, BrowserHTTP, c.Browser.Driver))
	}
	if _, err := fingerprint.ParseProfile(c.Browser.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("browser navigation timeout must be positive"))
	}
	if c.Browser.ContentTimeout <= 0 {
		errs = append(errs, errors.New("browser content timeout must be positive"))
	}

	if !slices.Contains(backend.Drivers(), c.Journal.Driver) {
		errs = append(errs, fmt.Errorf("journal driver must be one of %s, got %q", strings.Join(backend.Drivers(), ", "), c.Journal.Driver))
	} else if c.Journal.Driver != backend.DriverNone && c.Journal.DSN == "" {
		errs = append(errs, fmt.Errorf("journal driver %s requires a dsn", c.Journal.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
