// Package config loads and validates the application configuration.
// Configuration is read from config.yaml plus an optional per-environment
// overlay (config.dev.yaml or config.prod.yaml) selected by the ENV
// variable, with environment variables taking precedence over both.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/newsloom/newsloom/internal/logger"
)

// Environments recognised by the ENV variable.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Default tuning values.
const (
	defaultRequestTimeout       = 30 * time.Second
	defaultMaxRetries           = 3
	defaultMaxFailures          = 5
	defaultRequestsPerSecond    = 1.0
	defaultMaxConcurrentPerHost = 2
	defaultBackoffFactor        = 2.0
	defaultBackoffCeiling       = 5 * time.Minute
	defaultRobotsTTL            = 24 * time.Hour
	defaultRobotsFailureTTL     = time.Hour
	defaultSpiderMaxDepth       = 2
	defaultSpiderMaxVisited     = 40
	defaultSpiderMaxKnown       = 400
	defaultMaxPerSite           = 25
	defaultBatchSize            = 5
	defaultBatchDelay           = 2 * time.Second
	defaultRefreshAfter         = 24 * time.Hour
	defaultObsoleteDays         = 30
	defaultCheckInterval        = time.Minute
	defaultHistorySize          = 100
	defaultEmbedTimeout         = 60 * time.Second
	defaultEmbedDimensions      = 768
)

// DatabaseConfig holds relational store connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// VectorConfig holds vector store (Elasticsearch) settings.
type VectorConfig struct {
	Addresses        []string `mapstructure:"addresses"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	APIKey           string   `mapstructure:"api_key"`
	CollectionPrefix string   `mapstructure:"collection_prefix"`
	Dimensions       int      `mapstructure:"dimensions"`
}

// EmbedConfig holds the text-to-vector provider settings.
type EmbedConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HostOverride carries per-host pacing overrides for known-fragile sites.
type HostOverride struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// CrawlerConfig tunes fetching, pacing and discovery.
type CrawlerConfig struct {
	UserAgent         string                  `mapstructure:"user_agent"`
	RequestTimeout    time.Duration           `mapstructure:"request_timeout"`
	MaxRetries        int                     `mapstructure:"max_retries"`
	MaxFailures       int                     `mapstructure:"max_failures"`
	RequestsPerSecond float64                 `mapstructure:"requests_per_second"`
	MaxConcurrent     int                     `mapstructure:"max_concurrent"`
	BackoffFactor     float64                 `mapstructure:"backoff_factor"`
	BackoffCeiling    time.Duration           `mapstructure:"backoff_ceiling"`
	RobotsTTL         time.Duration           `mapstructure:"robots_ttl"`
	RobotsFailureTTL  time.Duration           `mapstructure:"robots_failure_ttl"`
	SpiderMaxDepth    int                     `mapstructure:"spider_max_depth"`
	SpiderMaxVisited  int                     `mapstructure:"spider_max_visited"`
	SpiderMaxKnown    int                     `mapstructure:"spider_max_known"`
	MaxPerSite        int                     `mapstructure:"max_per_site"`
	BatchSize         int                     `mapstructure:"batch_size"`
	BatchDelay        time.Duration           `mapstructure:"batch_delay"`
	RefreshAfter      time.Duration           `mapstructure:"refresh_after"`
	ObsoleteDays      int                     `mapstructure:"obsolete_days"`
	HostOverrides     map[string]HostOverride `mapstructure:"host_overrides"`
}

// SchedulerConfig tunes the job scheduler.
type SchedulerConfig struct {
	UpdateTime     string        `mapstructure:"update_time"`  // HH:MM daily crawl
	CleanupDay     string        `mapstructure:"cleanup_day"`  // cron weekday name
	CleanupTime    string        `mapstructure:"cleanup_time"` // HH:MM
	CleanupDaysOld int           `mapstructure:"cleanup_days_old"`
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	HistorySize    int           `mapstructure:"history_size"`
}

// RegistryConfig names the domain and site definition files.
type RegistryConfig struct {
	DomainsFile string `mapstructure:"domains_file"`
	SitesFile   string `mapstructure:"sites_file"`
}

// Config is the full application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Logger    logger.Config   `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Registry  RegistryConfig  `mapstructure:"registry"`
}

// Load reads configuration for the given environment. When env is empty,
// the ENV variable decides, defaulting to dev.
func Load(cfgFile, env string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if env == "" {
		env = v.GetString("env")
	}
	if env == "" {
		env = EnvDev
	}
	if env != EnvDev && env != EnvProd {
		return nil, fmt.Errorf("config: unknown environment %q", env)
	}

	setDefaults(v, env)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Base config file is optional; defaults plus env vars suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	// Per-environment overlay merges over the base file.
	if cfgFile == "" {
		overlay := viper.New()
		overlay.SetConfigName("config." + env)
		overlay.SetConfigType("yaml")
		overlay.AddConfigPath(".")
		overlay.AddConfigPath("./config")
		if err := overlay.ReadInConfig(); err == nil {
			if mergeErr := v.MergeConfigMap(overlay.AllSettings()); mergeErr != nil {
				return nil, fmt.Errorf("config: merge %s overlay: %w", env, mergeErr)
			}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.Env = env

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for startup-fatal mistakes.
func (c *Config) Validate() error {
	if c.Crawler.RequestsPerSecond <= 0 {
		return errors.New("config: crawler.requests_per_second must be positive")
	}
	if c.Crawler.MaxConcurrent <= 0 {
		return errors.New("config: crawler.max_concurrent must be positive")
	}
	if c.Crawler.BackoffFactor < 1 {
		return errors.New("config: crawler.backoff_factor must be >= 1")
	}
	if len(c.Vector.Addresses) == 0 {
		return errors.New("config: vector.addresses is required")
	}
	if c.Vector.Dimensions <= 0 {
		return errors.New("config: vector.dimensions must be positive")
	}
	return nil
}

// setDefaults registers default values for every tunable.
func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "console",
		"development": env == EnvDev,
	})

	v.SetDefault("database", map[string]any{
		"host":    "127.0.0.1",
		"port":    "5432",
		"user":    "newsloom",
		"dbname":  "newsloom",
		"sslmode": "disable",
	})

	v.SetDefault("vector", map[string]any{
		"addresses":         []string{"http://127.0.0.1:9200"},
		"collection_prefix": "newsloom",
		"dimensions":        defaultEmbedDimensions,
	})

	v.SetDefault("embed", map[string]any{
		"endpoint": "http://127.0.0.1:11434/api/embeddings",
		"model":    "nomic-embed-text",
		"timeout":  defaultEmbedTimeout.String(),
	})

	v.SetDefault("crawler", map[string]any{
		"user_agent":          "newsloom/1.0 (+https://github.com/newsloom/newsloom)",
		"request_timeout":     defaultRequestTimeout.String(),
		"max_retries":         defaultMaxRetries,
		"max_failures":        defaultMaxFailures,
		"requests_per_second": defaultRequestsPerSecond,
		"max_concurrent":      defaultMaxConcurrentPerHost,
		"backoff_factor":      defaultBackoffFactor,
		"backoff_ceiling":     defaultBackoffCeiling.String(),
		"robots_ttl":          defaultRobotsTTL.String(),
		"robots_failure_ttl":  defaultRobotsFailureTTL.String(),
		"spider_max_depth":    defaultSpiderMaxDepth,
		"spider_max_visited":  defaultSpiderMaxVisited,
		"spider_max_known":    defaultSpiderMaxKnown,
		"max_per_site":        defaultMaxPerSite,
		"batch_size":          defaultBatchSize,
		"batch_delay":         defaultBatchDelay.String(),
		"refresh_after":       defaultRefreshAfter.String(),
		"obsolete_days":       defaultObsoleteDays,
	})

	v.SetDefault("scheduler", map[string]any{
		"update_time":      "06:00",
		"cleanup_day":      "sunday",
		"cleanup_time":     "03:00",
		"cleanup_days_old": defaultObsoleteDays,
		"check_interval":   defaultCheckInterval.String(),
		"history_size":     defaultHistorySize,
	})

	v.SetDefault("registry", map[string]any{
		"domains_file": "domains.yml",
		"sites_file":   "sites.yml",
	})
}
