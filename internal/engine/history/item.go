package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item is one committed, immutable unit of history: the changes recorded by
// a completed top-level scope together with the selection before and after.
type Item struct {
	id        string
	label     string
	before    []any
	after     []any
	changes   []Change
	timestamp time.Time
}

// NewItem creates an item. The slices are copied; nil slices become empty.
func NewItem(before, after []any, changes []Change) *Item {
	return newItem("", before, after, changes)
}

func newItem(label string, before, after []any, changes []Change) *Item {
	return &Item{
		id:        uuid.NewString(),
		label:     label,
		before:    cloneSlice(before),
		after:     cloneSlice(after),
		changes:   cloneSlice(changes),
		timestamp: time.Now(),
	}
}

// Undo reverts every change in reverse recording order and returns the
// selection captured before the item. A failing change is passed to report
// and the remaining changes are still applied.
func (it *Item) Undo(report ReportFunc) []any {
	for i := len(it.changes) - 1; i >= 0; i-- {
		it.applyOne(it.changes[i], OpUndo, report)
	}
	return it.Before()
}

// Redo reapplies every change in recording order and returns the selection
// captured after the item.
func (it *Item) Redo(report ReportFunc) []any {
	for _, c := range it.changes {
		it.applyOne(c, OpRedo, report)
	}
	return it.After()
}

func (it *Item) applyOne(c Change, op Op, report ReportFunc) {
	if err := apply(c, op); err != nil && report != nil {
		report(c, op, err)
	}
}

// ID returns the unique item identifier.
func (it *Item) ID() string {
	return it.id
}

// Label returns the name given to the scope that produced the item.
func (it *Item) Label() string {
	return it.label
}

// Timestamp returns when the item was created.
func (it *Item) Timestamp() time.Time {
	return it.timestamp
}

// Len returns the number of changes.
func (it *Item) Len() int {
	return len(it.changes)
}

// Changes returns a copy of the recorded changes in recording order.
func (it *Item) Changes() []Change {
	return cloneSlice(it.changes)
}

// Before returns a copy of the selection captured when the scope opened.
func (it *Item) Before() []any {
	return cloneSlice(it.before)
}

// After returns a copy of the selection captured when the scope completed.
func (it *Item) After() []any {
	return cloneSlice(it.after)
}

// Description summarizes the item for listings.
func (it *Item) Description() string {
	switch {
	case it.label != "":
		return it.label
	case len(it.changes) == 1:
		return it.changes[0].Description()
	default:
		return fmt.Sprintf("%d changes", len(it.changes))
	}
}

// Info returns a read-only summary of the item.
func (it *Item) Info() ItemInfo {
	return ItemInfo{
		ID:          it.id,
		Label:       it.label,
		Description: it.Description(),
		Changes:     len(it.changes),
		Timestamp:   it.timestamp,
	}
}

// ItemInfo provides read-only info about an item.
// Used for displaying undo/redo history to users.
type ItemInfo struct {
	ID          string    // Unique item identifier
	Label       string    // Scope label, may be empty
	Description string    // Human-readable description
	Changes     int       // Number of recorded changes
	Timestamp   time.Time // When the item was created
}

func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
