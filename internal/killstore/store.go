package killstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rzbill/killfeed/internal/killmail"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

// ErrCorrupt is returned when a stored record fails its checksum or cannot
// be decoded.
var ErrCorrupt = errors.New("killstore: corrupt record")

// Store is the Pebble-backed killmail log.
type Store struct {
	db *pebblestore.DB

	mu     sync.Mutex
	lastID uint64
	now    func() time.Time
}

// Open loads the last assigned id from metadata and returns a Store.
func Open(db *pebblestore.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	meta, err := db.Get(metaKey)
	switch {
	case err == nil && len(meta) >= 8:
		s.lastID = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return nil, fmt.Errorf("killstore: load meta: %w", err)
	}
	return s, nil
}

// Append stores killmails as one atomic batch and returns their record ids
// in input order. Killmails already present (by killmail_id) keep their
// existing id and are not rewritten.
func (s *Store) Append(ctx context.Context, kms []killmail.Killmail) ([]uint64, error) {
	if len(kms) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	ids := make([]uint64, len(kms))
	pending := make(map[int64]uint64, len(kms))
	next := s.lastID
	for i := range kms {
		km := kms[i]
		if err := km.Validate(); err != nil {
			return nil, err
		}
		if id, ok := pending[km.KillmailID]; ok {
			ids[i] = id
			continue
		}
		if id, ok, err := s.lookup(km.KillmailID); err != nil {
			return nil, err
		} else if ok {
			ids[i] = id
			continue
		}
		if km.CreatedAt.IsZero() {
			km.CreatedAt = s.now().UTC()
		}
		payload, err := json.Marshal(km)
		if err != nil {
			return nil, fmt.Errorf("killstore: encode killmail %d: %w", km.KillmailID, err)
		}
		next++
		header := binary.BigEndian.AppendUint64(nil, uint64(km.CreatedAt.UnixMilli()))
		if err := b.Set(KeyEntry(next), EncodeRecord(header, payload), nil); err != nil {
			return nil, err
		}
		if err := b.Set(KeyKillmailIndex(km.KillmailID), appendBE8(nil, next), nil); err != nil {
			return nil, err
		}
		pending[km.KillmailID] = next
		ids[i] = next
	}
	if next == s.lastID {
		return ids, nil
	}
	if err := b.Set(metaKey, appendBE8(nil, next), nil); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	s.lastID = next
	return ids, nil
}

func (s *Store) lookup(killmailID int64) (uint64, bool, error) {
	v, err := s.db.Get(KeyKillmailIndex(killmailID))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(v) < 8 {
		return 0, false, ErrCorrupt
	}
	return binary.BigEndian.Uint64(v[:8]), true, nil
}

// Get returns the record with exactly id, or nil when absent.
func (s *Store) Get(_ context.Context, id uint64) (*killmail.Record, error) {
	v, err := s.db.Get(KeyEntry(id))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(id, v)
}

// Newest returns the record with the highest id, or nil when empty.
func (s *Store) Newest(ctx context.Context) (*killmail.Record, error) {
	return s.seek(ctx, func(it *pebble.Iterator) bool { return it.Last() })
}

// After returns the record with the smallest id greater than id, or nil.
func (s *Store) After(ctx context.Context, id uint64) (*killmail.Record, error) {
	if id == math.MaxUint64 {
		return nil, nil
	}
	return s.seek(ctx, func(it *pebble.Iterator) bool { return it.SeekGE(KeyEntry(id + 1)) })
}

// Before returns the record with the largest id less than id, or nil.
func (s *Store) Before(ctx context.Context, id uint64) (*killmail.Record, error) {
	if id == 0 {
		return nil, nil
	}
	return s.seek(ctx, func(it *pebble.Iterator) bool { return it.SeekLT(KeyEntry(id)) })
}

func (s *Store) seek(ctx context.Context, position func(*pebble.Iterator) bool) (*killmail.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it, err := s.db.NewPrefixIter(entrySeg)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	if !position(it) {
		return nil, it.Error()
	}
	id, ok := idFromEntryKey(it.Key())
	if !ok {
		return nil, ErrCorrupt
	}
	return decodeEntry(id, it.Value())
}

func decodeEntry(id uint64, raw []byte) (*killmail.Record, error) {
	dec, ok := DecodeRecord(raw)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCorrupt, id)
	}
	rec := &killmail.Record{ID: id}
	if err := json.Unmarshal(dec.Payload, &rec.Killmail); err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrCorrupt, id, err)
	}
	return rec, nil
}

// Stats summarizes the log.
type Stats struct {
	FirstID uint64 `json:"first_id"`
	LastID  uint64 `json:"last_id"`
}

// Stats reports the first and last stored ids (zero when empty).
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	first, err := s.seek(ctx, func(it *pebble.Iterator) bool { return it.First() })
	if err != nil {
		return st, err
	}
	if first == nil {
		return st, nil
	}
	st.FirstID = first.ID
	s.mu.Lock()
	st.LastID = s.lastID
	s.mu.Unlock()
	return st, nil
}
