package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Usage     UsageConfig     `yaml:"usage"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TransportConfig selects how MCP clients connect: "http" or "stdio".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// DBConfig selects the store. Driver is "sqlite" (Path) or "postgres" (DSN).
type DBConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig configures the analytics cache. Driver is "memory", "redis" or "none".
type CacheConfig struct {
	Driver   string        `yaml:"driver"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventsConfig configures event publishing. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type UsageConfig struct {
	StatusWriteAttempts int           `yaml:"status_write_attempts"`
	StatusWriteBackoff  time.Duration `yaml:"status_write_backoff"`
}

type AnalyticsConfig struct {
	// RetrospectiveLookbackYears bounds the "same day in past years" query; 0 scans every prior year.
	RetrospectiveLookbackYears int    `yaml:"retrospective_lookback_years"`
	Timezone                   string `yaml:"timezone"`
}

// Default returns the configuration used when no file or env overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "quilts.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Driver: "memory",
			TTL:    5 * time.Minute,
		},
		Events: EventsConfig{
			SubjectPrefix: "quilts",
		},
		Usage: UsageConfig{
			StatusWriteAttempts: 3,
			StatusWriteBackoff:  50 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			Timezone: "Local",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("QUILTS_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("QUILTS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("QUILTS_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUILTS_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("QUILTS_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if driver := os.Getenv("QUILTS_DB_DRIVER"); driver != "" {
		cfg.DB.Driver = driver
	}
	if dbPath := os.Getenv("QUILTS_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if dsn := os.Getenv("QUILTS_DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if level := os.Getenv("QUILTS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if driver := os.Getenv("QUILTS_CACHE_DRIVER"); driver != "" {
		cfg.Cache.Driver = driver
	}
	if url := os.Getenv("QUILTS_REDIS_URL"); url != "" {
		cfg.Cache.RedisURL = url
	}
	if ttlStr := os.Getenv("QUILTS_CACHE_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUILTS_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = ttl
	}
	if url := os.Getenv("QUILTS_NATS_URL"); url != "" {
		cfg.Events.NATSURL = url
	}
	if yearsStr := os.Getenv("QUILTS_RETROSPECTIVE_LOOKBACK_YEARS"); yearsStr != "" {
		years, err := strconv.Atoi(yearsStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUILTS_RETROSPECTIVE_LOOKBACK_YEARS: %w", err)
		}
		cfg.Analytics.RetrospectiveLookbackYears = years
	}
	if tz := os.Getenv("QUILTS_TIMEZONE"); tz != "" {
		cfg.Analytics.Timezone = tz
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required for the postgres driver")
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for the redis cache driver")
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("unsupported transport mode %q", c.Transport.Mode)
	}
	if c.Analytics.RetrospectiveLookbackYears < 0 {
		return fmt.Errorf("analytics.retrospective_lookback_years must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the analytics timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Analytics.Timezone == "" || c.Analytics.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics.timezone: %w", err)
	}
	return loc, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
