package config

import (
	"fmt"
	"time"

	"tradevault/internal/scheduler"
)

func validate(c *Config) error {
	if _, ok := scheduler.ParseInterval(c.Sync.AutoInterval); !ok {
		return fmt.Errorf("sync.auto_interval is not a valid interval: %q", c.Sync.AutoInterval)
	}
	if c.Sync.AdapterRatePerSec <= 0 {
		return fmt.Errorf("sync.adapter_rate_per_sec must be > 0")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be > 0")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be > 0")
	}
	return nil
}

// AutoSyncInterval returns the parsed auto-sync cadence. applyDefaults
// and validate guarantee it parses.
func (c *Config) AutoSyncInterval() time.Duration {
	iv, _ := scheduler.ParseInterval(c.Sync.AutoInterval)
	return iv
}
