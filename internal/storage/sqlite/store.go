// Package sqlite is an Ordered Record Source backed by a SQLite table whose
// INTEGER PRIMARY KEY AUTOINCREMENT column is the insertion-ordered id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rzbill/killfeed/internal/killmail"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS killmails (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	killmail_id INTEGER NOT NULL UNIQUE,
	killmail_hash TEXT NOT NULL,
	kill_time_utc_ns INTEGER NOT NULL,
	created_at_utc_ns INTEGER NOT NULL,
	body TEXT NOT NULL
);

CREATE TRIGGER IF NOT EXISTS trg_killmails_no_update
BEFORE UPDATE ON killmails
BEGIN
	SELECT RAISE(ABORT, 'killmails are append-only: UPDATE forbidden');
END;
`

// Store reads and appends killmails in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; readers share the same handle
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Append inserts killmails in one transaction and returns their ids in input
// order. Killmails already present keep their existing id.
func (s *Store) Append(ctx context.Context, kms []killmail.Killmail) ([]uint64, error) {
	if len(kms) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]uint64, len(kms))
	for i := range kms {
		km := kms[i]
		if err := km.Validate(); err != nil {
			return nil, err
		}
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM killmails WHERE killmail_id = ?`, km.KillmailID).Scan(&existing)
		if err == nil {
			ids[i] = uint64(existing)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup killmail %d: %w", km.KillmailID, err)
		}
		if km.CreatedAt.IsZero() {
			km.CreatedAt = s.now().UTC()
		}
		body, err := json.Marshal(km)
		if err != nil {
			return nil, fmt.Errorf("encode killmail %d: %w", km.KillmailID, err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO killmails (killmail_id, killmail_hash, kill_time_utc_ns, created_at_utc_ns, body) VALUES (?, ?, ?, ?, ?)`,
			km.KillmailID, km.KillmailHash, km.KillTime.UTC().UnixNano(), km.CreatedAt.UTC().UnixNano(), string(body))
		if err != nil {
			return nil, fmt.Errorf("insert killmail %d: %w", km.KillmailID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids[i] = uint64(id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Newest returns the record with the highest id, or nil when empty.
func (s *Store) Newest(ctx context.Context) (*killmail.Record, error) {
	return s.one(ctx, `SELECT id, body FROM killmails ORDER BY id DESC LIMIT 1`)
}

// After returns the record with the smallest id greater than id, or nil.
func (s *Store) After(ctx context.Context, id uint64) (*killmail.Record, error) {
	if id >= math.MaxInt64 {
		return nil, nil
	}
	return s.one(ctx, `SELECT id, body FROM killmails WHERE id > ? ORDER BY id ASC LIMIT 1`, int64(id))
}

// Before returns the record with the largest id less than id, or nil.
func (s *Store) Before(ctx context.Context, id uint64) (*killmail.Record, error) {
	if id > math.MaxInt64 {
		return s.Newest(ctx)
	}
	return s.one(ctx, `SELECT id, body FROM killmails WHERE id < ? ORDER BY id DESC LIMIT 1`, int64(id))
}

func (s *Store) one(ctx context.Context, query string, args ...any) (*killmail.Record, error) {
	var (
		id   int64
		body string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &killmail.Record{ID: uint64(id)}
	if err := json.Unmarshal([]byte(body), &rec.Killmail); err != nil {
		return nil, fmt.Errorf("decode killmail row %d: %w", id, err)
	}
	return rec, nil
}

// Stats reports the first and last ids (zero when empty).
func (s *Store) Stats(ctx context.Context) (first, last uint64, err error) {
	var lo, hi sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(id), MAX(id) FROM killmails`).Scan(&lo, &hi); err != nil {
		return 0, 0, err
	}
	return uint64(lo.Int64), uint64(hi.Int64), nil
}
