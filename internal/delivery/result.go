package delivery

import (
	"errors"
	"fmt"

	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/killmail"
)

// ErrMissingQueueID is reported when a poll carries no queue identifier.
var ErrMissingQueueID = errors.New("delivery: queueID is required")

// ErrNotAfterCursor is reported when the source returns a record that does
// not advance the queue's position.
var ErrNotAfterCursor = errors.New("delivery: record does not advance the cursor")

// Stage names the step of a poll that failed.
type Stage string

const (
	StageRequest     Stage = "request"
	StageCursorRead  Stage = "cursor_read"
	StageCursorWrite Stage = "cursor_write"
	StageSource      Stage = "source"
	StageFilter      Stage = "filter"
)

// StageError tags an error with the poll stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "unknown".
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	if errors.Is(err, ErrMissingQueueID) {
		return StageRequest
	}
	return "unknown"
}

// Result is the outcome of a resolve attempt or a whole poll. A zero Result
// means "nothing new". Err may be set together with a nil Record; callers
// answer with the empty shape and log Err.
type Result struct {
	Record *killmail.Record
	// Skipped is the highest position passed over by a filter without a
	// match. The queue cursor moves past it even when Record is nil.
	Skipped cursor.Position
	Err     error
}

// Found reports whether a record is ready to deliver.
func (r Result) Found() bool { return r.Record != nil }

// Position returns where the queue cursor should point after this result,
// or NoPosition when it should stay put.
func (r Result) Position() cursor.Position {
	if r.Record != nil {
		return cursor.Position(r.Record.ID)
	}
	return r.Skipped
}
