package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "BENCHTOP_"

// applyEnv overrides file values with BENCHTOP_* variables.
func applyEnv(c *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, envPrefix, name, err)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, envPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("CATALOG_URL", &c.Catalog.URL)
	str("CATALOG_DIR", &c.Catalog.Dir)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	str("NATS_URL", &c.Notify.NATSURL)
	str("NATS_SUBJECT", &c.Notify.Subject)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	for _, err := range []error{
		dur("IDLE_TIMEOUT", &c.Sessions.IdleTimeout),
		dur("SWEEP_INTERVAL", &c.Sessions.SweepInterval),
		dur("CATALOG_TIMEOUT", &c.Catalog.Timeout),
		boolean("CATALOG_WATCH", &c.Catalog.Watch),
		boolean("METRICS_ENABLED", &c.Metrics.Enabled),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
