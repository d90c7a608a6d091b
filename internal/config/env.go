package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays the short-form KILLFEED_* variables onto cfg. These are
// the knobs operators set most often; the full key space is available to
// Load through KILLFEED_<SECTION>_<KEY>.
func FromEnv(cfg *Config) {
	if v := os.Getenv("KILLFEED_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("KILLFEED_FSYNC"); v != "" {
		cfg.Storage.Fsync = v
	}
	if v := os.Getenv("KILLFEED_HTTP"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("KILLFEED_SOURCE"); v != "" {
		cfg.Source.Driver = v
	}
	if v := os.Getenv("KILLFEED_SQLITE_PATH"); v != "" {
		cfg.Source.SQLitePath = v
	}
	if v := os.Getenv("KILLFEED_CURSOR"); v != "" {
		cfg.Cursor.Driver = v
	}
	if v := os.Getenv("KILLFEED_NATS_URL"); v != "" {
		cfg.Cursor.NATSURL = v
	}
	if v := os.Getenv("KILLFEED_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("KILLFEED_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("KILLFEED_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poll.Interval = d
		}
	}
	if v := os.Getenv("KILLFEED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KILLFEED_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
