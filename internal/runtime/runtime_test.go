package runtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/metrics"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

func kms(ids ...int64) []killmail.Killmail {
	out := make([]killmail.Killmail, 0, len(ids))
	for _, id := range ids {
		out = append(out, killmail.Killmail{
			KillmailID:   id,
			KillmailHash: "hash",
			KillTime:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	_, ok := rt.Cursors().(*cursor.Pebble)
	assert.True(t, ok)
}

func TestPollThroughRuntime(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfgpkg.Default(), Metrics: m})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Source().Append(ctx, kms(101, 102, 103))
	require.NoError(t, err)

	p := rt.Poller(m)
	res := p.Poll(ctx, delivery.FeedRedisQ, "rt", 1, nil)
	require.NoError(t, res.Err)
	require.True(t, res.Found())
	assert.Equal(t, int64(103), res.Record.Killmail.KillmailID)

	v, found, err := rt.Cursors().Get(ctx, cursor.QueueKeys(delivery.FeedRedisQ, "rt").Position)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", v)

	st, err := rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Driver: cfgpkg.SourcePebble, FirstID: 1, LastID: 3}, st)
}

func TestSQLiteSourceAndMemoryCursors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.Source.Driver = cfgpkg.SourceSQLite
	cfg.Source.SQLitePath = filepath.Join(dir, "kills.db")
	cfg.Cursor.Driver = cfgpkg.CursorMemory

	rt, err := Open(Options{DataDir: dir, Config: cfg})
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.CheckHealth(ctx))

	_, err = rt.Source().Append(ctx, kms(7, 8))
	require.NoError(t, err)
	st, err := rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfgpkg.SourceSQLite, st.Driver)
	assert.Equal(t, uint64(2), st.LastID)

	_, ok := rt.Cursors().(*cursor.Memory)
	assert.True(t, ok)
	n, err := rt.SweepCursors(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepCursors(t *testing.T) {
	ctx := context.Background()
	cfg := cfgpkg.Default()
	cfg.Cursor.SweepInterval = 0
	rt, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Cursors().Set(ctx, "stale", "1", time.Millisecond))
	require.NoError(t, rt.Cursors().Set(ctx, "fresh", "2", cursor.TTL))
	time.Sleep(5 * time.Millisecond)

	n, err := rt.SweepCursors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, found, _ := rt.Cursors().Get(ctx, "fresh")
	assert.True(t, found)
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Cursor.Driver = "redis"
	_, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	require.Error(t, err)

	cfg = cfgpkg.Default()
	cfg.Storage.Fsync = "sometimes"
	_, err = Open(Options{DataDir: t.TempDir(), Config: cfg})
	require.Error(t, err)
}
