package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/runtime"
	"github.com/spf13/cobra"
)

// backwardSource walks a record source from the newest record down.
type backwardSource interface {
	Newest(ctx context.Context) (*killmail.Record, error)
	Before(ctx context.Context, id uint64) (*killmail.Record, error)
}

// rewindPosition returns the position from which the next polls deliver
// the newest count records, and how many that will actually be. Position
// zero cannot be stored, so when the walk reaches record 1 that record is
// left out, except when it is the only one: a fresh queue receives it.
func rewindPosition(ctx context.Context, src backwardSource, count int) (cursor.Position, int, error) {
	if count <= 0 {
		return cursor.NoPosition, 0, errors.New("--count must be positive")
	}
	oldest, err := src.Newest(ctx)
	if err != nil || oldest == nil {
		return cursor.NoPosition, 0, err
	}
	n := 1
	for n < count {
		prev, err := src.Before(ctx, oldest.ID)
		if err != nil {
			return cursor.NoPosition, 0, err
		}
		if prev == nil {
			break
		}
		oldest, n = prev, n+1
	}
	prev, err := src.Before(ctx, oldest.ID)
	switch {
	case err != nil:
		return cursor.NoPosition, 0, err
	case prev != nil:
		return cursor.Position(prev.ID), n, nil
	case oldest.ID > 1:
		return cursor.Position(oldest.ID - 1), n, nil
	case n == 1:
		return cursor.NoPosition, 1, nil
	default:
		return cursor.Position(oldest.ID), n - 1, nil
	}
}

type rewindResult struct {
	Feed     string `json:"feed"`
	Queue    string `json:"queue"`
	Position uint64 `json:"position"`
	Replay   int    `json:"replay"`
}

// NewRewindCommand returns `rewind`, which moves a queue's cursor back so
// its next polls replay the newest records. It writes to the configured
// cursor store; with the pebble store the server must be stopped.
func NewRewindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Move a queue's cursor back so it replays the newest N records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed, _ := cmd.Flags().GetString("endpoint")
			queue, _ := cmd.Flags().GetString("queue")
			count, _ := cmd.Flags().GetInt("count")
			if _, err := envelopeKey(feed); err != nil {
				return err
			}
			if queue == "" {
				return errors.New("--queue is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := runtime.Open(runtime.Options{Config: cfg})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx := cmd.Context()
			pos, replay, err := rewindPosition(ctx, rt.Source(), count)
			if err != nil {
				return err
			}
			value := ""
			if pos != cursor.NoPosition {
				value = pos.String()
			}
			if err := rt.Cursors().Set(ctx, cursor.QueueKeys(feed, queue).Position, value, cursor.TTL); err != nil {
				return fmt.Errorf("write cursor: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rewindResult{Feed: feed, Queue: queue, Position: uint64(pos), Replay: replay})
		},
	}
	addConfigFlag(cmd)
	cmd.Flags().String("endpoint", "redisq", "Feed whose cursor to move: redisq|stream")
	cmd.Flags().String("queue", "", "Queue id (required)")
	cmd.Flags().Int("count", 1, "Number of newest records to replay")
	cmd.Flags().String("data-dir", "", "Data directory (default from config or OS data dir)")
	cmd.Flags().String("source", "", "Record source: pebble|sqlite")
	cmd.Flags().String("sqlite-path", "", "SQLite database path for --source sqlite")
	return cmd
}
