package history

import (
	"fmt"
	"slices"

	"github.com/dshills/rewind/internal/attr"
)

// ListInsertChange records an element appended to a slice.
type ListInsertChange[T comparable] struct {
	list *[]T
	elem T
}

// NewListInsert creates a change that appends elem to *list on redo and
// removes it on undo.
func NewListInsert[T comparable](list *[]T, elem T) (*ListInsertChange[T], error) {
	if list == nil {
		return nil, fmt.Errorf("list insert: %w", ErrNilTarget)
	}
	if attr.IsNil(any(elem)) {
		return nil, fmt.Errorf("list insert: %w", ErrNilElement)
	}
	return &ListInsertChange[T]{list: list, elem: elem}, nil
}

// Redo appends the element unless it is already present.
func (c *ListInsertChange[T]) Redo() error {
	if !slices.Contains(*c.list, c.elem) {
		*c.list = append(*c.list, c.elem)
	}
	return nil
}

// Undo removes the element if present.
func (c *ListInsertChange[T]) Undo() error {
	*c.list = removeFirst(*c.list, c.elem)
	return nil
}

// Element returns the inserted element.
func (c *ListInsertChange[T]) Element() T {
	return c.elem
}

// Description returns a human-readable description.
func (c *ListInsertChange[T]) Description() string {
	return fmt.Sprintf("Insert %v", c.elem)
}

// ListRemoveChange records an element removed from a slice at a known index.
type ListRemoveChange[T comparable] struct {
	list  *[]T
	elem  T
	index int
}

// NewListRemove creates a change that removes elem from *list on redo and
// puts it back at index on undo. index is the position elem occupied before
// the removal.
func NewListRemove[T comparable](list *[]T, elem T, index int) (*ListRemoveChange[T], error) {
	if list == nil {
		return nil, fmt.Errorf("list remove: %w", ErrNilTarget)
	}
	if attr.IsNil(any(elem)) {
		return nil, fmt.Errorf("list remove: %w", ErrNilElement)
	}
	return &ListRemoveChange[T]{list: list, elem: elem, index: index}, nil
}

// Redo removes the element if present.
func (c *ListRemoveChange[T]) Redo() error {
	*c.list = removeFirst(*c.list, c.elem)
	return nil
}

// Undo reinserts the element at the recorded index, or appends it when the
// index is out of range. Any existing occurrence is removed first so the
// element is never duplicated.
func (c *ListRemoveChange[T]) Undo() error {
	s := removeFirst(*c.list, c.elem)
	if c.index >= 0 && c.index < len(s) {
		s = slices.Insert(s, c.index, c.elem)
	} else {
		s = append(s, c.elem)
	}
	*c.list = s
	return nil
}

// Element returns the removed element.
func (c *ListRemoveChange[T]) Element() T {
	return c.elem
}

// Index returns the position the element is restored to.
func (c *ListRemoveChange[T]) Index() int {
	return c.index
}

// Description returns a human-readable description.
func (c *ListRemoveChange[T]) Description() string {
	return fmt.Sprintf("Remove %v at %d", c.elem, c.index)
}

func removeFirst[T comparable](s []T, elem T) []T {
	if i := slices.Index(s, elem); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
