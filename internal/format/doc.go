// Package format renders killmail records for the two long-poll feeds.
//
// Compact produces the zKillboard RedisQ package: an ESI-shaped killmail
// plus a zkb block whose dropped and destroyed values are recomputed from
// the item tree at render time. Verbose produces the full stored record with
// every key present, zero-defaulted when absent, so consumers can rely on
// key presence.
//
// Both functions are pure. Rendering the same record twice yields identical
// bytes; the only timestamps emitted are the record's own.
package format
