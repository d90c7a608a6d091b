package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "killmails.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func km(id int64) killmail.Killmail {
	return killmail.Killmail{
		KillmailID:   id,
		KillmailHash: "h",
		KillTime:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Items:        []killmail.Item{{TypeID: 1, Value: 10, QtyDropped: 1}},
	}
}

func TestAppendAndOrderedReads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Newest(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	ids, err := s.Append(ctx, []killmail.Killmail{km(500), km(400), km(600)})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids, "ordering follows insertion, not killmail_id")

	rec, err = s.Newest(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, uint64(3), rec.ID)
	assert.Equal(t, int64(600), rec.Killmail.KillmailID)

	rec, err = s.After(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(400), rec.Killmail.KillmailID)
	require.Len(t, rec.Killmail.Items, 1)

	rec, err = s.Before(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, uint64(1), rec.ID)

	rec, err = s.After(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAppendIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Append(ctx, []killmail.Killmail{km(1), km(2)})
	require.NoError(t, err)
	ids, err := s.Append(ctx, []killmail.Killmail{km(2), km(3)})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids)

	first, last, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(3), last)
}

func TestAppendRollsBackOnInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Append(ctx, []killmail.Killmail{km(1), {KillmailID: 2}})
	require.Error(t, err)
	rec, err := s.Newest(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestOversizedIDsDoNotWrap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Append(ctx, []killmail.Killmail{km(1), km(2), km(3)})
	require.NoError(t, err)

	for _, id := range []uint64{1 << 63, 1<<63 - 1, ^uint64(0)} {
		rec, err := s.After(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, rec, "After(%d)", id)
	}

	rec, err := s.Before(ctx, 1<<63)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, uint64(3), rec.ID)
}
