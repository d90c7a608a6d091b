// Package killstore is the embedded, append-only killmail log.
//
// Records are persisted in Pebble under insertion-ordered ids so that the
// feed can ask for "the newest record", "the first record after id X" and
// "the last record before id X" with a single iterator seek each:
//
//	s, _ := killstore.Open(db)
//	ids, _ := s.Append(ctx, []killmail.Killmail{km})
//	rec, _ := s.After(ctx, ids[0]-1) // rec.ID == ids[0]
//	newest, _ := s.Newest(ctx)
//
// Appends are idempotent on killmail_id: re-appending a killmail that is
// already stored returns the existing id and writes nothing.
package killstore
