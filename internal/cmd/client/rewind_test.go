package client

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/runtime"
)

// sliceSource serves records with the given ids, ascending.
type sliceSource []uint64

func (s sliceSource) Newest(context.Context) (*killmail.Record, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return &killmail.Record{ID: s[len(s)-1]}, nil
}

func (s sliceSource) Before(_ context.Context, id uint64) (*killmail.Record, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] < id {
			return &killmail.Record{ID: s[i]}, nil
		}
	}
	return nil, nil
}

func TestRewindPosition(t *testing.T) {
	tests := []struct {
		name   string
		src    sliceSource
		count  int
		pos    cursor.Position
		replay int
	}{
		{"empty source", nil, 3, cursor.NoPosition, 0},
		{"within history", sliceSource{1, 2, 3, 4, 5}, 2, 3, 2},
		{"gaps in ids", sliceSource{2, 5, 9, 14}, 2, 5, 2},
		{"past the first record", sliceSource{4, 5, 6}, 10, 3, 3},
		{"first record is id 1", sliceSource{1, 2, 3}, 10, 1, 2},
		{"single record", sliceSource{1}, 5, cursor.NoPosition, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, replay, err := rewindPosition(context.Background(), tt.src, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.pos, pos)
			assert.Equal(t, tt.replay, replay)
		})
	}

	_, _, err := rewindPosition(context.Background(), sliceSource{1}, 0)
	assert.Error(t, err)
}

func TestRewindCommandReplaysNewestRecords(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	lines := filepath.Join(dir, "kills.jsonl")
	require.NoError(t, os.WriteFile(lines, []byte(fixtureLines), 0o644))
	runImport(t, dataDir, lines)

	cmd := NewRewindCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--data-dir", dataDir, "--endpoint", "stream", "--queue", "bot", "--count", "2"})
	require.NoError(t, cmd.Execute(), buf.String())
	var res rewindResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, rewindResult{Feed: "stream", Queue: "bot", Position: 1, Replay: 2}, res)

	rt, err := runtime.Open(runtime.Options{DataDir: dataDir, Config: cfgpkg.Default()})
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	v, _, err := rt.Cursors().Get(context.Background(), cursor.QueueKeys("stream", "bot").Position)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(1), v)

	p := rt.Poller(nil)
	var got []uint64
	for i := 0; i < 2; i++ {
		r := p.Poll(context.Background(), delivery.FeedStream, "bot", 1, nil)
		require.True(t, r.Found())
		got = append(got, r.Record.ID)
	}
	assert.Equal(t, []uint64{2, 3}, got)
}

func TestRewindCommandRequiresQueue(t *testing.T) {
	cmd := NewRewindCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--data-dir", t.TempDir()})
	require.Error(t, cmd.Execute())
}
