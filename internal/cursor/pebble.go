package cursor

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

// Layout: cur/{key} -> expiresAtMs(be8, 0 = never) | value
var pebblePrefix = []byte("cur/")

// Pebble is a Store persisted in the embedded Pebble database.
type Pebble struct {
	db  *pebblestore.DB
	now func() time.Time
}

// NewPebble returns a Pebble-backed store. The DB is owned by the caller.
func NewPebble(db *pebblestore.DB) *Pebble {
	return &Pebble{db: db, now: time.Now}
}

func pebbleKey(key string) []byte {
	k := make([]byte, 0, len(pebblePrefix)+len(key))
	k = append(k, pebblePrefix...)
	return append(k, key...)
}

func (p *Pebble) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	raw, err := p.db.Get(pebbleKey(key))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, live := p.decode(raw)
	if !live {
		return "", false, nil
	}
	return value, true, nil
}

func (p *Pebble) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var expires uint64
	if ttl > 0 {
		expires = uint64(p.now().Add(ttl).UnixMilli())
	}
	buf := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(value)), expires)
	buf = append(buf, value...)
	return p.db.Set(pebbleKey(key), buf)
}

// decode returns the value and whether it is still live. Values shorter
// than the expiry header are treated as absent.
func (p *Pebble) decode(raw []byte) (string, bool) {
	if len(raw) < 8 {
		return "", false
	}
	expires := binary.BigEndian.Uint64(raw[:8])
	if expires != 0 && uint64(p.now().UnixMilli()) >= expires {
		return "", false
	}
	return string(raw[8:]), true
}

// Sweep deletes expired and malformed entries and returns how many were
// removed. It commits in batches of up to batchSize deletes.
func (p *Pebble) Sweep(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1024
	}
	it, err := p.db.NewPrefixIter(pebblePrefix)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	removed := 0
	b := p.db.NewBatch()
	defer func() { b.Close() }()
	pending := 0
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if _, live := p.decode(it.Value()); live {
			continue
		}
		if err := b.Delete(append([]byte(nil), it.Key()...), nil); err != nil {
			return removed, err
		}
		pending++
		if pending >= batchSize {
			if err := p.db.CommitBatch(ctx, b); err != nil {
				return removed, err
			}
			removed += pending
			pending = 0
			b.Close()
			b = p.db.NewBatch()
		}
	}
	if err := it.Error(); err != nil {
		return removed, err
	}
	if pending > 0 {
		if err := p.db.CommitBatch(ctx, b); err != nil {
			return removed, err
		}
		removed += pending
	}
	return removed, nil
}

// Close is a no-op; the DB is closed by its owner.
func (p *Pebble) Close() error { return nil }
