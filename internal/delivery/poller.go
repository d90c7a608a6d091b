package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rzbill/killfeed/internal/cursor"
)

// Feeds served by the HTTP endpoints. Each keeps its own cursors.
const (
	FeedRedisQ = "redisq"
	FeedStream = "stream"
)

// Outcome classifies a finished poll for metrics.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeEmpty     Outcome = "empty"
	OutcomeError     Outcome = "error"
)

// Observer receives one call per finished poll.
type Observer interface {
	ObservePoll(feed string, outcome Outcome, elapsed time.Duration, stage Stage)
}

// NoopObserver discards observations.
type NoopObserver struct{}

func (NoopObserver) ObservePoll(string, Outcome, time.Duration, Stage) {}

// Poller runs full poll cycles against a cursor store.
type Poller struct {
	cursors  cursor.Store
	waiter   *Waiter
	observer Observer
	now      func() time.Time
}

// NewPoller wires a poller. A nil observer is replaced with NoopObserver.
func NewPoller(cursors cursor.Store, waiter *Waiter, observer Observer) *Poller {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Poller{cursors: cursors, waiter: waiter, observer: observer, now: time.Now}
}

// Poll serves one long-poll request for queueID on feed.
//
// The liveness key is refreshed on every poll. A missing or malformed
// position means a fresh queue. When a record is found the new position is
// written before the record is returned; if that write fails the record is
// withheld so the queue never skips it. An empty poll on an existing queue
// refreshes the position's TTL.
func (p *Poller) Poll(ctx context.Context, feed, queueID string, ttw int, f *Filter) (res Result) {
	start := p.now()
	defer func() { p.observe(feed, res, p.now().Sub(start)) }()

	if queueID == "" {
		return Result{Err: ErrMissingQueueID}
	}
	keys := cursor.QueueKeys(feed, queueID)

	var aliveErr error
	if err := p.cursors.Set(ctx, keys.Alive, strconv.FormatInt(start.UnixMilli(), 10), cursor.TTL); err != nil {
		aliveErr = stageErr(StageCursorWrite, err)
	}

	raw, found, err := p.cursors.Get(ctx, keys.Position)
	if err != nil {
		// without a position nothing can be resolved; answer empty after
		// the usual wait so clients keep their poll cadence
		p.waiter.Hold(ctx, ttw)
		return Result{Err: stageErr(StageCursorRead, err)}
	}
	last, _ := cursor.ParsePosition(raw)

	res = p.waiter.WaitForNext(ctx, last, ttw, f)
	if res.Found() && res.Record.ID <= uint64(last) {
		// delivery only moves forward; a source answering at or behind the
		// cursor must not be served again
		return Result{Err: stageErr(StageSource, fmt.Errorf("%w: record %d, cursor %d", ErrNotAfterCursor, res.Record.ID, last))}
	}

	next := res.Position()
	switch {
	case next > last:
		if err := p.cursors.Set(ctx, keys.Position, next.String(), cursor.TTL); err != nil {
			return Result{Err: stageErr(StageCursorWrite, err)}
		}
	case found && last != cursor.NoPosition:
		if err := p.cursors.Set(ctx, keys.Position, last.String(), cursor.TTL); err != nil && res.Err == nil {
			res.Err = stageErr(StageCursorWrite, err)
		}
	}
	if res.Err == nil && aliveErr != nil {
		res.Err = aliveErr
	}
	return res
}

func (p *Poller) observe(feed string, res Result, elapsed time.Duration) {
	switch {
	case res.Found():
		p.observer.ObservePoll(feed, OutcomeDelivered, elapsed, "")
	case res.Err != nil:
		p.observer.ObservePoll(feed, OutcomeError, elapsed, StageOf(res.Err))
	default:
		p.observer.ObservePoll(feed, OutcomeEmpty, elapsed, "")
	}
}
