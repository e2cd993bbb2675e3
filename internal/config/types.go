package config

// Config is the main configuration carrier.
type Config struct {
	App       AppConfig       `toml:"app"`
	Storage   StorageConfig   `toml:"storage"`
	Sync      SyncConfig      `toml:"sync"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
	SyncLogPath  string `toml:"sync_log_path"`
}

// SyncConfig controls the orchestrator: auto-sync cadence and adapter
// pacing.
type SyncConfig struct {
	AutoInterval      string  `toml:"auto_interval"`
	AdapterRatePerSec float64 `toml:"adapter_rate_per_sec"`
	AdapterBurst      int     `toml:"adapter_burst"`
}

// RateLimitConfig is the default write-path policy; individual call
// sites may override per call.
type RateLimitConfig struct {
	MaxRequests   int `toml:"max_requests"`
	WindowSeconds int `toml:"window_seconds"`
}
