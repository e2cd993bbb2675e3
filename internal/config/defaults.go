package config

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":8087"
	defaultDatabasePath  = "data/tradevault.db"
	defaultSyncLogPath   = "data/synclog.db"
	defaultAutoInterval  = "30m"
	defaultAdapterRate   = 1.0
	defaultAdapterBurst  = 3
	defaultRateLimitMax  = 50
	defaultRateLimitWind = 60
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = defaultDatabasePath
	}
	if c.Storage.SyncLogPath == "" {
		c.Storage.SyncLogPath = defaultSyncLogPath
	}
	if c.Sync.AutoInterval == "" {
		c.Sync.AutoInterval = defaultAutoInterval
	}
	if c.Sync.AdapterRatePerSec <= 0 {
		c.Sync.AdapterRatePerSec = defaultAdapterRate
	}
	if c.Sync.AdapterBurst <= 0 {
		c.Sync.AdapterBurst = defaultAdapterBurst
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = defaultRateLimitMax
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = defaultRateLimitWind
	}
}
