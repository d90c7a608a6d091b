package cursor

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
)

// TTL is the inactivity window after which a queue's keys expire.
const TTL = 3 * time.Hour

// Store is the cursor key-value contract.
type Store interface {
	// Get returns the value for key; found is false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set writes value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// Position is a record id as stored in a queue's position key. Zero means
// "no cursor".
type Position uint64

// NoPosition is the position of a queue that has never been served.
const NoPosition Position = 0

// String renders the position as stored.
func (p Position) String() string { return strconv.FormatUint(uint64(p), 10) }

// MaxPosition is the largest position a record source can hold; ids are
// signed 64-bit in SQL stores.
const MaxPosition Position = math.MaxInt64

// ParsePosition parses a stored position. Anything that is not a decimal
// integer in [1, MaxPosition] yields (NoPosition, false) and is treated as
// a fresh queue.
func ParsePosition(s string) (Position, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoPosition, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 || n > uint64(MaxPosition) {
		return NoPosition, false
	}
	return Position(n), true
}

// Keys are the cursor store keys owned by one client queue.
type Keys struct {
	Position string
	Alive    string
}

// QueueKeys builds the keys for queueID on a feed ("redisq" or "stream").
func QueueKeys(feed, queueID string) Keys {
	base := feed + "." + queueID
	return Keys{Position: base + ".position", Alive: base + ".alive"}
}
