package history

import (
	"fmt"
	"strings"

	"github.com/mitchellh/copystructure"

	"github.com/dshills/rewind/internal/attr"
)

// AttributeChange sets a named attribute on a target.
type AttributeChange struct {
	object   any
	target   attr.Target
	notifier attr.Notifier
	name     string
	oldValue any
	newValue any
	clone    bool
}

type attributeOptions struct {
	clone bool
}

// AttributeOption configures an AttributeChange.
type AttributeOption func(*attributeOptions)

// WithClonedValues deep-copies the old and new values when the change is
// created and again each time one is applied, so later mutation of a shared
// slice, map or struct cannot rewrite history.
func WithClonedValues() AttributeOption {
	return func(o *attributeOptions) {
		o.clone = true
	}
}

// NewAttributeChange creates a change that sets name on target to newValue
// on redo and to oldValue on undo.
//
// target must implement attr.Target or be a non-nil pointer to a struct.
// The attribute must exist and be writable, and both values must be
// assignable to its declared type; a nil value means the zero value.
func NewAttributeChange(target any, name string, oldValue, newValue any, opts ...AttributeOption) (*AttributeChange, error) {
	if attr.IsNil(target) {
		return nil, fmt.Errorf("attribute change: %w", ErrNilTarget)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("attribute change: %w: empty name", attr.ErrUnknownAttribute)
	}

	var o attributeOptions
	for _, opt := range opts {
		opt(&o)
	}

	t, err := attr.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("attribute change %q: %w", name, err)
	}
	d, err := attr.Lookup(t, name)
	if err != nil {
		return nil, fmt.Errorf("attribute change on %T: %w", target, err)
	}
	if d.ReadOnly {
		return nil, fmt.Errorf("attribute change: %w: %q", attr.ErrReadOnly, name)
	}
	if err := attr.CheckAssignable(d, oldValue); err != nil {
		return nil, fmt.Errorf("attribute change old value: %w", err)
	}
	if err := attr.CheckAssignable(d, newValue); err != nil {
		return nil, fmt.Errorf("attribute change new value: %w", err)
	}

	if o.clone {
		if oldValue, err = cloneValue(oldValue); err != nil {
			return nil, fmt.Errorf("attribute change %q: clone old value: %w", name, err)
		}
		if newValue, err = cloneValue(newValue); err != nil {
			return nil, fmt.Errorf("attribute change %q: clone new value: %w", name, err)
		}
	}

	notifier, ok := attr.NotifierOf(target)
	if !ok {
		notifier, _ = attr.NotifierOf(t)
	}

	return &AttributeChange{
		object:   target,
		target:   t,
		notifier: notifier,
		name:     name,
		oldValue: oldValue,
		newValue: newValue,
		clone:    o.clone,
	}, nil
}

// Redo sets the attribute to the new value.
func (c *AttributeChange) Redo() error {
	return c.set(c.newValue)
}

// Undo sets the attribute back to the old value.
func (c *AttributeChange) Undo() error {
	return c.set(c.oldValue)
}

func (c *AttributeChange) set(v any) error {
	if c.clone {
		var err error
		if v, err = cloneValue(v); err != nil {
			return fmt.Errorf("set %q: clone: %w", c.name, err)
		}
	}
	if err := c.target.SetAttribute(c.name, v); err != nil {
		return fmt.Errorf("set %q: %w", c.name, err)
	}
	if c.notifier != nil {
		c.notifier.AttributeChanged(c.name)
	}
	return nil
}

// Target returns the object the change was created for.
func (c *AttributeChange) Target() any {
	return c.object
}

// Name returns the attribute name.
func (c *AttributeChange) Name() string {
	return c.name
}

// OldValue returns the value restored by Undo.
func (c *AttributeChange) OldValue() any {
	return c.oldValue
}

// NewValue returns the value applied by Redo.
func (c *AttributeChange) NewValue() any {
	return c.newValue
}

// Description returns a human-readable description.
func (c *AttributeChange) Description() string {
	return fmt.Sprintf("Set %s", c.name)
}

func cloneValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return copystructure.Copy(v)
}
