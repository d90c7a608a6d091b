package delivery

import (
	"context"

	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/killmail"
)

// Source is the ordered, read-only record store. "Not found" is (nil, nil).
type Source interface {
	// Newest returns the record with the highest id.
	Newest(ctx context.Context) (*killmail.Record, error)
	// After returns the record with the smallest id strictly greater than id.
	After(ctx context.Context, id uint64) (*killmail.Record, error)
}

// DefaultMaxSkip bounds how many filtered-out records one attempt walks.
const DefaultMaxSkip = 1000

// Resolver maps a queue position to the next record to deliver.
type Resolver struct {
	src     Source
	maxSkip int
}

// NewResolver returns a resolver over src. maxSkip <= 0 uses DefaultMaxSkip.
func NewResolver(src Source, maxSkip int) *Resolver {
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &Resolver{src: src, maxSkip: maxSkip}
}

// Next resolves one attempt. With no cursor it returns the newest record, so
// a new client starts at "now" rather than replaying history. Otherwise it
// returns the immediate successor of last, never skipping an id.
//
// When f is non-nil, records f rejects are walked over (at most maxSkip per
// call) and reported through Result.Skipped.
func (r *Resolver) Next(ctx context.Context, last cursor.Position, f *Filter) Result {
	var (
		rec *killmail.Record
		err error
	)
	if last == cursor.NoPosition {
		rec, err = r.src.Newest(ctx)
	} else {
		rec, err = r.src.After(ctx, uint64(last))
	}
	if err != nil {
		return Result{Err: stageErr(StageSource, err)}
	}
	if rec == nil || f == nil {
		return Result{Record: rec}
	}

	var skipped cursor.Position
	for i := 0; ; i++ {
		ok, err := f.Match(rec)
		if err != nil {
			return Result{Skipped: skipped, Err: stageErr(StageFilter, err)}
		}
		if ok {
			return Result{Record: rec, Skipped: skipped}
		}
		skipped = cursor.Position(rec.ID)
		if i+1 >= r.maxSkip {
			return Result{Skipped: skipped}
		}
		rec, err = r.src.After(ctx, rec.ID)
		if err != nil {
			return Result{Skipped: skipped, Err: stageErr(StageSource, err)}
		}
		if rec == nil {
			return Result{Skipped: skipped}
		}
	}
}
