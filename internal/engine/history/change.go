package history

import (
	"errors"
	"fmt"
)

// Errors returned by change constructors and the manager.
var (
	// ErrNilTarget indicates a change was constructed without its container
	// or target object.
	ErrNilTarget = errors.New("history: nil target")

	// ErrNilElement indicates a nil element, key or value was supplied.
	ErrNilElement = errors.New("history: nil element")

	// ErrNilItem indicates Commit was called with a nil item.
	ErrNilItem = errors.New("history: nil item")

	// ErrApplyPanic wraps a panic recovered while applying a change.
	ErrApplyPanic = errors.New("history: change panicked")

	// ErrCheckpointStale indicates the history was rewritten after the
	// checkpoint was taken.
	ErrCheckpointStale = errors.New("history: checkpoint no longer valid")
)

// Op names the direction a change is applied in.
type Op string

// Apply directions.
const (
	OpUndo Op = "undo"
	OpRedo Op = "redo"
)

// Change is a single reversible mutation.
type Change interface {
	// Redo applies the new state.
	Redo() error

	// Undo restores the old state.
	Undo() error

	// Description returns a human-readable description of the change.
	Description() string
}

// ReportFunc receives failures from changes applied by an Item.
type ReportFunc func(c Change, op Op, err error)

// apply runs one direction of c, converting a panic into an error.
func apply(c Change, op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanic, r)
		}
	}()

	if op == OpUndo {
		return c.Undo()
	}
	return c.Redo()
}
