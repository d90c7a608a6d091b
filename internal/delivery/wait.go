package delivery

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/killfeed/internal/cursor"
)

// Wait bounds for a poll, in seconds, and the retry interval.
const (
	MinWaitSeconds     = 1
	MaxWaitSeconds     = 10
	DefaultWaitSeconds = 10
	RetryInterval      = 500 * time.Millisecond
)

// ClampWait clamps a requested wait to [MinWaitSeconds, MaxWaitSeconds].
func ClampWait(seconds int) time.Duration {
	return clamp(seconds, MinWaitSeconds*time.Second, MaxWaitSeconds*time.Second)
}

func clamp(seconds int, lo, hi time.Duration) time.Duration {
	d := time.Duration(seconds) * time.Second
	if seconds <= 0 || d < lo {
		return lo
	}
	if seconds > int(hi/time.Second) || d > hi {
		return hi
	}
	return d
}

// ParseWait parses the ttw query value. Missing or non-numeric input yields
// def, or DefaultWaitSeconds when def is not positive; clamping happens
// later.
func ParseWait(s string, def int) int {
	if def <= 0 {
		def = DefaultWaitSeconds
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Clock abstracts time for the wait loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// WaiterOptions tunes the wait loop. Zero values take the package defaults;
// wait bounds outside [MinWaitSeconds, MaxWaitSeconds] are pulled back in.
type WaiterOptions struct {
	Interval time.Duration
	MinWait  time.Duration
	MaxWait  time.Duration
	Clock    Clock
}

// Waiter repeats resolve attempts until a record appears or time runs out.
type Waiter struct {
	resolver *Resolver
	interval time.Duration
	minWait  time.Duration
	maxWait  time.Duration
	clock    Clock
}

// NewWaiter returns a waiter over resolver.
func NewWaiter(resolver *Resolver, opts WaiterOptions) *Waiter {
	w := &Waiter{
		resolver: resolver,
		interval: opts.Interval,
		minWait:  opts.MinWait,
		maxWait:  opts.MaxWait,
		clock:    opts.Clock,
	}
	if w.interval <= 0 {
		w.interval = RetryInterval
	}
	lo, hi := MinWaitSeconds*time.Second, MaxWaitSeconds*time.Second
	if w.minWait < lo || w.minWait > hi {
		w.minWait = lo
	}
	if w.maxWait <= 0 || w.maxWait > hi {
		w.maxWait = hi
	}
	if w.maxWait < w.minWait {
		w.maxWait = w.minWait
	}
	if w.clock == nil {
		w.clock = SystemClock
	}
	return w
}

// Budget returns the clamped wait for a requested number of seconds.
func (w *Waiter) Budget(seconds int) time.Duration {
	return clamp(seconds, w.minWait, w.maxWait)
}

// Hold blocks for the clamped budget, in interval steps, or until ctx is
// done.
func (w *Waiter) Hold(ctx context.Context, seconds int) {
	budget := w.Budget(seconds)
	start := w.clock.Now()
	for w.clock.Now().Sub(start) < budget {
		if err := w.clock.Sleep(ctx, w.interval); err != nil {
			return
		}
	}
}

// WaitForNext makes one attempt immediately, then one every interval, and
// returns as soon as a record is found or the elapsed time reaches the
// clamped budget. A storage error fails only its attempt; the last one seen
// is reported if nothing was found. Filter skips accumulate across attempts.
func (w *Waiter) WaitForNext(ctx context.Context, last cursor.Position, seconds int, f *Filter) Result {
	budget := w.Budget(seconds)
	start := w.clock.Now()

	var (
		lastErr error
		skipped cursor.Position
	)
	pos := last
	for {
		res := w.resolver.Next(ctx, pos, f)
		if res.Skipped > skipped {
			skipped = res.Skipped
			pos = skipped
		}
		if res.Found() {
			res.Skipped = skipped
			return res
		}
		if res.Err != nil {
			lastErr = res.Err
		}
		if w.clock.Now().Sub(start) >= budget {
			break
		}
		if err := w.clock.Sleep(ctx, w.interval); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
	}
	return Result{Skipped: skipped, Err: lastErr}
}
