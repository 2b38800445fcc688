// Package config loads the service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Ebay      EbayConfig      `mapstructure:"ebay"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MongoConfig struct {
	// URI empty means run on the in-memory stores.
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type EbayConfig struct {
	AppID        string `mapstructure:"app_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	// AuthToken is a long-lived token used instead of the OAuth flow,
	// mainly against the sandbox.
	AuthToken string `mapstructure:"auth_token"`
	Sandbox   bool   `mapstructure:"sandbox"`

	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// RateCapacity and RateRefill tune the API token bucket: capacity
	// tokens, one restored every refill interval.
	RateCapacity int           `mapstructure:"rate_capacity"`
	RateRefill   time.Duration `mapstructure:"rate_refill"`
	CachePath    string        `mapstructure:"cache_path"`
}

type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	ItemsPerSecond  float64       `mapstructure:"items_per_second"`
	MaintenanceSpec string        `mapstructure:"maintenance_spec"`
}

type HistoryConfig struct {
	KeepRecentCount     int `mapstructure:"keep_recent_count"`
	FailedRetentionDays int `mapstructure:"failed_retention_days"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the REPRICER_ prefix with
// underscores, e.g. REPRICER_MONGO_URI.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "repricer")
	v.SetDefault("ebay.sandbox", false)
	v.SetDefault("ebay.call_timeout", 15*time.Second)
	v.SetDefault("ebay.rate_capacity", 10)
	v.SetDefault("ebay.rate_refill", 500*time.Millisecond)
	v.SetDefault("ebay.cache_path", "data/search-cache.json")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 20*time.Minute)
	v.SetDefault("scheduler.batch_size", 3)
	v.SetDefault("scheduler.items_per_second", 2.0)
	v.SetDefault("scheduler.maintenance_spec", "0 3 * * *")
	v.SetDefault("history.keep_recent_count", 100)
	v.SetDefault("history.failed_retention_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("REPRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler interval %s is below the 1m floor", c.Scheduler.Interval)
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler batch size must be at least 1")
	}
	if c.History.KeepRecentCount < 1 {
		return fmt.Errorf("history retention must keep at least 1 record")
	}
	return nil
}
