package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

// Record source drivers.
const (
	SourcePebble = "pebble"
	SourceSQLite = "sqlite"
)

// Cursor store drivers.
const (
	CursorPebble = "pebble"
	CursorNATS   = "nats"
	CursorMemory = "memory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KILLFEED"

// Clients may ask for 1..10 seconds; configured bounds can narrow that
// range but never widen it.
const (
	minWaitFloor   = time.Second
	maxWaitCeiling = 10 * time.Second
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Cursor  CursorConfig  `mapstructure:"cursor" yaml:"cursor"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type HTTPConfig struct {
	Addr            string          `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`
	RateLimit       RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit"`
}

// RateLimitConfig is a per-client token bucket. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type StorageConfig struct {
	// DataDir holds the Pebble database. Empty means DefaultDataDir().
	DataDir string `mapstructure:"dataDir" yaml:"dataDir"`
	Fsync   string `mapstructure:"fsync" yaml:"fsync"`
}

type SourceConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlitePath" yaml:"sqlitePath"`
}

type CursorConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	NATSURL       string        `mapstructure:"natsURL" yaml:"natsURL"`
	Bucket        string        `mapstructure:"bucket" yaml:"bucket"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval"`
}

// PollConfig tunes the long-poll loop. The defaults are the protocol
// values clients expect: 1..10s wait, 500ms retry.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MinWait     time.Duration `mapstructure:"minWait" yaml:"minWait"`
	MaxWait     time.Duration `mapstructure:"maxWait" yaml:"maxWait"`
	DefaultWait int           `mapstructure:"defaultWait" yaml:"defaultWait"`
	MaxSkip     int           `mapstructure:"maxSkip" yaml:"maxSkip"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       RateLimitConfig{RPS: 0, Burst: 20},
		},
		Storage: StorageConfig{Fsync: "interval"},
		Source:  SourceConfig{Driver: SourcePebble},
		Cursor: CursorConfig{
			Driver:        CursorPebble,
			Bucket:        "killfeed_cursors",
			SweepInterval: 5 * time.Minute,
		},
		Poll: PollConfig{
			Interval:    500 * time.Millisecond,
			MinWait:     time.Second,
			MaxWait:     10 * time.Second,
			DefaultWait: 10,
			MaxSkip:     1000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.shutdownTimeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.rateLimit.rps", d.HTTP.RateLimit.RPS)
	v.SetDefault("http.rateLimit.burst", d.HTTP.RateLimit.Burst)
	v.SetDefault("storage.dataDir", d.Storage.DataDir)
	v.SetDefault("storage.fsync", d.Storage.Fsync)
	v.SetDefault("source.driver", d.Source.Driver)
	v.SetDefault("source.sqlitePath", d.Source.SQLitePath)
	v.SetDefault("cursor.driver", d.Cursor.Driver)
	v.SetDefault("cursor.natsURL", d.Cursor.NATSURL)
	v.SetDefault("cursor.bucket", d.Cursor.Bucket)
	v.SetDefault("cursor.sweepInterval", d.Cursor.SweepInterval)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.minWait", d.Poll.MinWait)
	v.SetDefault("poll.maxWait", d.Poll.MaxWait)
	v.SetDefault("poll.defaultWait", d.Poll.DefaultWait)
	v.SetDefault("poll.maxSkip", d.Poll.MaxSkip)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration from a JSON or YAML file (by extension) and
// KILLFEED_* environment variables, e.g. KILLFEED_HTTP_ADDR or
// KILLFEED_POLL_MAXWAIT. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and poll bounds.
func (c Config) Validate() error {
	var errs []error
	switch c.Source.Driver {
	case SourcePebble:
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			errs = append(errs, errors.New("source.sqlitePath is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.driver %q: want pebble or sqlite", c.Source.Driver))
	}
	switch c.Cursor.Driver {
	case CursorPebble, CursorMemory:
	case CursorNATS:
		if c.Cursor.NATSURL == "" {
			errs = append(errs, errors.New("cursor.natsURL is required for the nats driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("cursor.driver %q: want pebble, nats or memory", c.Cursor.Driver))
	}
	if _, err := pebblestore.ParseFsyncMode(c.Storage.Fsync); err != nil {
		errs = append(errs, fmt.Errorf("storage.fsync: %w", err))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if c.Poll.MinWait < minWaitFloor || c.Poll.MaxWait > maxWaitCeiling || c.Poll.MaxWait < c.Poll.MinWait {
		errs = append(errs, fmt.Errorf("poll wait bounds [%s, %s] must lie within [%s, %s]",
			c.Poll.MinWait, c.Poll.MaxWait, minWaitFloor, maxWaitCeiling))
	}
	if c.HTTP.ShutdownTimeout > 0 && c.HTTP.ShutdownTimeout <= c.Poll.MaxWait {
		errs = append(errs, fmt.Errorf("http.shutdownTimeout %s must exceed poll.maxWait %s", c.HTTP.ShutdownTimeout, c.Poll.MaxWait))
	}
	if c.Poll.DefaultWait <= 0 {
		errs = append(errs, errors.New("poll.defaultWait must be positive"))
	}
	if c.HTTP.RateLimit.RPS > 0 && c.HTTP.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("http.rateLimit.burst must be positive when rps is set"))
	}
	return errors.Join(errs...)
}
