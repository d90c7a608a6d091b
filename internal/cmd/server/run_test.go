package serverrun

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		def      string
		envValue string
		expected string
	}{
		{name: "environment variable set", key: "KILLFEED_TEST_VAR", def: "default", envValue: "env_value", expected: "env_value"},
		{name: "environment variable not set", key: "KILLFEED_TEST_VAR_NOT_SET", def: "default", expected: "default"},
		{name: "environment variable empty", key: "KILLFEED_TEST_VAR_EMPTY", def: "default", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)
			assert.Equal(t, tt.expected, getenvDefault(tt.key, tt.def))
		})
	}
}

func TestGetenvOverride(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(key string) string {
		if key == "KILLFEED_LOG_FORMAT" {
			return "json"
		}
		return ""
	}
	assert.Equal(t, "json", getenvDefault("KILLFEED_LOG_FORMAT", "text"))
	assert.Equal(t, "info", getenvDefault("KILLFEED_LOG_LEVEL", "info"))
}

func TestDefaultDataDirIntegration(t *testing.T) {
	dir := cfgpkg.DefaultDataDir()
	require.NotEmpty(t, dir)
	assert.True(t, filepath.IsAbs(dir) || strings.HasPrefix(dir, "./") || strings.HasPrefix(dir, "."),
		"DataDir should be absolute or relative to cwd, got %s", dir)
	if dir == "./data" {
		return
	}
	lower := strings.ToLower(dir)
	assert.True(t, strings.HasSuffix(lower, "killfeed") || strings.HasSuffix(lower, ".killfeed"),
		"DataDir should end with killfeed, got %s", dir)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// TestRunServesUntilCancelled starts the server on a free port, polls the
// health endpoint and then cancels.
func TestRunServesUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := freeAddr(t)
	cfg := cfgpkg.Default()
	cfg.Cursor.Driver = cfgpkg.CursorMemory
	cfg.Log.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			DataDir:  t.TempDir(),
			HTTPAddr: addr,
			Fsync:    pebblestore.FsyncModeNever,
			Config:   cfg,
		})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/v1/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunInvalidSourceDriver(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Source.Driver = "postgres"
	cfg.Log.Level = "error"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Run(ctx, Options{DataDir: t.TempDir(), HTTPAddr: "127.0.0.1:0", Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
