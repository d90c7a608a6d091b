package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDataDirPrefersXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	assert.Equal(t, filepath.Join(xdg, "killfeed"), DefaultDataDir())
}

func TestDefaultDataDirWithoutHome(t *testing.T) {
	t.Setenv("HOME", "")
	t.Setenv("XDG_DATA_HOME", "/ignored")
	// no home means no per-user location at all, XDG included
	assert.Equal(t, "./data", DefaultDataDir())
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "killmails.db")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.True(t, isDir(dir))
	assert.False(t, isDir(file))
	assert.False(t, isDir(filepath.Join(dir, "missing")))
}
