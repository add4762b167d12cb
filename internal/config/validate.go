package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the parts of the config that can be verified without side
// effects. It is used both at startup and as the reload validator, so a bad
// edit never replaces a working config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if s := strings.TrimSpace(cfg.Logging.Level); s != "" {
		switch strings.ToLower(s) {
		case "trace", "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.level: unknown level %q", s)
		}
	}

	if cfg.Storage != nil {
		switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
		case "", "file", "sqlite", "sqlite3":
		case "postgres", "pg":
			if strings.TrimSpace(cfg.Storage.DSN) == "" {
				return fmt.Errorf("storage.dsn is required for the postgres driver")
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if tz := strings.TrimSpace(cfg.Trigger.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("trigger.timezone: %w", err)
		}
	}

	if _, err := ParseDurationField("call.post_call_delay", cfg.Call.PostCallDelay); err != nil {
		return err
	}

	if n := cfg.Notify; n != nil {
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			return fmt.Errorf("notify: workers, queue_size, rate_per_sec and retry_max must be >= 0")
		}
		for _, f := range []struct{ path, raw string }{
			{"notify.retry_base", n.RetryBase},
			{"notify.retry_max_delay", n.RetryMaxDelay},
			{"notify.send_timeout", n.SendTimeout},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	for _, f := range []struct{ path, raw string }{
		{"http.read_timeout", cfg.HTTP.ReadTimeout},
		{"http.write_timeout", cfg.HTTP.WriteTimeout},
		{"http.idle_timeout", cfg.HTTP.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	return nil
}
