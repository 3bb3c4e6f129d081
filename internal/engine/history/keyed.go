package history

import (
	"fmt"

	"github.com/dshills/rewind/internal/attr"
)

// MapInsertChange records a key/value pair added to a map.
type MapInsertChange[K comparable, V any] struct {
	m     map[K]V
	key   K
	value V
}

// NewMapInsert creates a change that adds key/value to m on redo and deletes
// key on undo.
func NewMapInsert[K comparable, V any](m map[K]V, key K, value V) (*MapInsertChange[K, V], error) {
	if err := checkKeyed(m, key, value); err != nil {
		return nil, fmt.Errorf("map insert: %w", err)
	}
	return &MapInsertChange[K, V]{m: m, key: key, value: value}, nil
}

// Redo adds the pair unless the key is already present.
func (c *MapInsertChange[K, V]) Redo() error {
	if _, ok := c.m[c.key]; !ok {
		c.m[c.key] = c.value
	}
	return nil
}

// Undo deletes the key if present.
func (c *MapInsertChange[K, V]) Undo() error {
	delete(c.m, c.key)
	return nil
}

// Key returns the inserted key.
func (c *MapInsertChange[K, V]) Key() K {
	return c.key
}

// Value returns the inserted value.
func (c *MapInsertChange[K, V]) Value() V {
	return c.value
}

// Description returns a human-readable description.
func (c *MapInsertChange[K, V]) Description() string {
	return fmt.Sprintf("Insert key %v", c.key)
}

// MapRemoveChange records a key/value pair removed from a map.
type MapRemoveChange[K comparable, V any] struct {
	m     map[K]V
	key   K
	value V
}

// NewMapRemove creates a change that deletes key from m on redo and restores
// key/value on undo.
func NewMapRemove[K comparable, V any](m map[K]V, key K, value V) (*MapRemoveChange[K, V], error) {
	if err := checkKeyed(m, key, value); err != nil {
		return nil, fmt.Errorf("map remove: %w", err)
	}
	return &MapRemoveChange[K, V]{m: m, key: key, value: value}, nil
}

// Redo deletes the key if present.
func (c *MapRemoveChange[K, V]) Redo() error {
	delete(c.m, c.key)
	return nil
}

// Undo restores the pair unless the key is already present.
func (c *MapRemoveChange[K, V]) Undo() error {
	if _, ok := c.m[c.key]; !ok {
		c.m[c.key] = c.value
	}
	return nil
}

// Key returns the removed key.
func (c *MapRemoveChange[K, V]) Key() K {
	return c.key
}

// Value returns the removed value.
func (c *MapRemoveChange[K, V]) Value() V {
	return c.value
}

// Description returns a human-readable description.
func (c *MapRemoveChange[K, V]) Description() string {
	return fmt.Sprintf("Remove key %v", c.key)
}

func checkKeyed[K comparable, V any](m map[K]V, key K, value V) error {
	if m == nil {
		return ErrNilTarget
	}
	if attr.IsNil(any(key)) || attr.IsNil(any(value)) {
		return ErrNilElement
	}
	return nil
}
