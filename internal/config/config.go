// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. SITECRAWLER_CRAWLER_WORKERS.
const EnvPrefix = "SITECRAWLER"

// DefaultUserAgent identifies the crawler to the sites it visits.
const DefaultUserAgent = "sitecrawler/1.0 (+https://github.com/JakeFAU/sitecrawler)"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Report  ReportConfig  `mapstructure:"report"`
}

// CrawlerConfig governs the worker pool and the fetcher.
type CrawlerConfig struct {
	Workers        int            `mapstructure:"workers"`
	PollInterval   time.Duration  `mapstructure:"poll_interval"`
	UserAgent      string         `mapstructure:"user_agent"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	MaxBodyBytes   int            `mapstructure:"max_body_bytes"`
	Headless       HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig switches fetching to a headless Chrome for sites that build
// their links with JavaScript.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ExecPath          string        `mapstructure:"exec_path"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the live status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ReportConfig selects where the final summary is exported.
type ReportConfig struct {
	JSONPath  string         `mapstructure:"json_path"`
	GCSBucket string         `mapstructure:"gcs_bucket"`
	GCSPrefix string         `mapstructure:"gcs_prefix"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	PubSub    PubSubConfig   `mapstructure:"pubsub"`
}

// PubSubConfig publishes a completion message carrying the report. An empty
// ProjectID is detected from the environment.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// PostgresConfig controls the row export of crawl results.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	CreateTable     bool          `mapstructure:"create_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// New returns a Viper instance with env binding and defaults applied. Callers
// may bind flags to it before passing it to Decode.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return Config{}, err
	}
	return Decode(v)
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return crawler.ConfigError("read config %s: %v", path, err)
	}
	return nil
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, crawler.ConfigError("unmarshal config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", 10)
	v.SetDefault("crawler.poll_interval", 50*time.Millisecond)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.max_body_bytes", 10<<20)
	v.SetDefault("crawler.headless.enabled", false)
	v.SetDefault("crawler.headless.max_parallel", 2)
	v.SetDefault("crawler.headless.navigation_timeout", 25*time.Second)
	v.SetDefault("crawler.headless.exec_path", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("report.json_path", "")
	v.SetDefault("report.gcs_bucket", "")
	v.SetDefault("report.gcs_prefix", "reports")
	v.SetDefault("report.postgres.dsn", "")
	v.SetDefault("report.postgres.table", "crawl_results")
	v.SetDefault("report.postgres.create_table", true)
	v.SetDefault("report.postgres.max_conns", 4)
	v.SetDefault("report.postgres.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("report.pubsub.project_id", "")
	v.SetDefault("report.pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits. Every failure
// wraps crawler.ErrConfiguration.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return crawler.ConfigError("crawler.workers must be > 0, got %d", c.Crawler.Workers)
	}
	if c.Crawler.PollInterval <= 0 {
		return crawler.ConfigError("crawler.poll_interval must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return crawler.ConfigError("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxBodyBytes < 0 {
		return crawler.ConfigError("crawler.max_body_bytes must be >= 0")
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return crawler.ConfigError("crawler.user_agent must be set")
	}
	if h := c.Crawler.Headless; h.Enabled {
		if h.MaxParallel <= 0 {
			return crawler.ConfigError("crawler.headless.max_parallel must be > 0 when headless is enabled")
		}
		if h.NavigationTimeout <= 0 {
			return crawler.ConfigError("crawler.headless.navigation_timeout must be > 0 when headless is enabled")
		}
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return crawler.ConfigError("logging.level: %v", err)
		}
	}
	if c.Report.Postgres.DSN != "" && c.Report.Postgres.Table == "" {
		return crawler.ConfigError("report.postgres.table must be set when report.postgres.dsn is")
	}
	if c.Report.Postgres.MaxConns < 0 {
		return crawler.ConfigError("report.postgres.max_conns must be >= 0")
	}
	if c.Report.Postgres.MaxConnLifetime < 0 {
		return crawler.ConfigError("report.postgres.max_conn_lifetime must be >= 0")
	}
	return nil
}

// String renders the non-secret parts of the config for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("workers=%d poll=%s timeout=%s headless=%t metrics=%q json=%q gcs=%q postgres=%t pubsub=%q",
		c.Crawler.Workers, c.Crawler.PollInterval, c.Crawler.RequestTimeout, c.Crawler.Headless.Enabled,
		c.Metrics.Addr, c.Report.JSONPath, c.Report.GCSBucket, c.Report.Postgres.DSN != "", c.Report.PubSub.TopicName)
}
