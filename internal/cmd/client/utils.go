package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP URL of a killfeed server.
type BaseURLFunc func() string

// BaseURLFromEnv returns KILLFEED_URL or the local default.
func BaseURLFromEnv() string {
	if v := os.Getenv("KILLFEED_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

// envelopeKey is the top-level key whose value is null on an empty poll.
func envelopeKey(endpoint string) (string, error) {
	switch endpoint {
	case "redisq":
		return "package", nil
	case "stream":
		return "killmail", nil
	default:
		return "", fmt.Errorf("invalid --endpoint %q; use redisq|stream", endpoint)
	}
}

// delivered reports whether body carries a record under key, and returns
// the body compacted onto one line.
func delivered(body []byte, key string) (bool, []byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, nil, fmt.Errorf("decode response: %w", err)
	}
	raw, ok := doc[key]
	if !ok {
		return false, nil, fmt.Errorf("response has no %q field", key)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return false, nil, err
	}
	return true, buf.Bytes(), nil
}

// loadConfig reads --config (if any), overlays KILLFEED_* env and the
// storage flags shared by local commands.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
		cfg.Storage.DataDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("source"); f != nil && f.Changed {
		cfg.Source.Driver = f.Value.String()
	}
	if f := cmd.Flags().Lookup("sqlite-path"); f != nil && f.Changed {
		cfg.Source.SQLitePath = f.Value.String()
	}
	return cfg, cfg.Validate()
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", os.Getenv("KILLFEED_CONFIG"), "Config file (yaml or json)")
}
