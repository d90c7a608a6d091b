package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

func newPebbleStore(t *testing.T) (*Pebble, *pebblestore.DB, *fakeClock) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewPebble(db)
	s.now = clk.Now
	return s, db, clk
}

func TestPebbleGetSet(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newPebbleStore(t)

	_, found, err := s.Get(ctx, "stream.q.position")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "stream.q.position", "12", TTL))
	v, found, err := s.Get(ctx, "stream.q.position")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "12", v)
}

func TestPebbleExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	s, db, clk := newPebbleStore(t)

	require.NoError(t, s.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, s.Set(ctx, "b", "2", TTL))
	require.NoError(t, s.Set(ctx, "c", "3", 0))
	// garbage without an expiry header
	require.NoError(t, db.Set(pebbleKey("d"), []byte{1, 2}))

	clk.Advance(time.Hour)
	_, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
	_, found, _ = s.Get(ctx, "d")
	require.False(t, found)

	removed, err := s.Sweep(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = db.Get(pebbleKey("a"))
	require.ErrorIs(t, err, pebblestore.ErrNotFound)
	v, found, _ := s.Get(ctx, "b")
	require.True(t, found)
	require.Equal(t, "2", v)
	v, found, _ = s.Get(ctx, "c")
	require.True(t, found)
	require.Equal(t, "3", v)
}

func TestPebbleSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	require.NoError(t, NewPebble(db).Set(ctx, "redisq.x.position", "77", TTL))
	require.NoError(t, db.Close())

	db, err = pebblestore.Open(pebblestore.Options{DataDir: dir})
	require.NoError(t, err)
	defer db.Close()
	v, found, err := NewPebble(db).Get(ctx, "redisq.x.position")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "77", v)
}
