// Package config loads the benchtop service configuration from a YAML file,
// an optional .env file and BENCHTOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoCatalog     = errors.New("catalog.url or catalog.dir is required")
)

// Config represents the complete configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Sessions SessionsConfig `yaml:"sessions"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// CatalogConfig selects where checklists come from. URL wins over Dir.
type CatalogConfig struct {
	URL        string        `yaml:"url"`
	Dir        string        `yaml:"dir"`
	Watch      bool          `yaml:"watch"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type SessionsConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	EventBuffer   int           `yaml:"event_buffer"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or none
	DSN    string `yaml:"dsn"`
}

// NotifyConfig enables NATS publishing of finished timers when NATSURL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Catalog: CatalogConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Sessions: SessionsConfig{
			IdleTimeout:   2 * time.Hour,
			SweepInterval: 5 * time.Minute,
			EventBuffer:   16,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "benchtop.db",
		},
		Notify: NotifyConfig{
			Subject: "benchtop.timers.finished",
		},
		Metrics: MetricsConfig{Enabled: true},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configPath over the defaults. A missing file is only an error
// when mustExist is set; .env is optional.
func Load(configPath string, mustExist bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !mustExist:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Catalog.URL == "" && c.Catalog.Dir == "" {
		return ErrNoCatalog
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	if c.Server.ReadHeaderTimeout < 0 {
		return fmt.Errorf("%w: server.read_header_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("%w: catalog.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Sessions.IdleTimeout < 0 {
		return fmt.Errorf("%w: sessions.idle_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Sessions.IdleTimeout > 0 && c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("%w: sessions.sweep_interval must be positive", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for %s", ErrInvalidConfig, c.Storage.Driver)
		}
	case "none", "":
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	switch c.Logging.Format {
	case "text", "json", "":
	default:
		return fmt.Errorf("%w: logging.format must be text or json", ErrInvalidConfig)
	}
	return nil
}
