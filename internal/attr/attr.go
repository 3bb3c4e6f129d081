// Package attr defines the settable-attribute capability that attribute
// changes are recorded against.
//
// A Target describes, reads and writes named attributes. Application types
// either implement Target directly or are adapted by reflection with
// Reflect, which exposes the exported fields of a struct pointer. Targets
// that also implement Notifier are told after an attribute was rewritten by
// undo or redo.
package attr

import (
	"errors"
	"fmt"
	"reflect"
)

// Errors returned by attribute lookups and validation.
var (
	// ErrNilTarget indicates a nil target was supplied.
	ErrNilTarget = errors.New("attr: target is nil")

	// ErrUnsupportedTarget indicates the target neither implements Target
	// nor is a non-nil pointer to a struct.
	ErrUnsupportedTarget = errors.New("attr: unsupported target")

	// ErrUnknownAttribute indicates the named attribute does not exist.
	ErrUnknownAttribute = errors.New("attr: unknown attribute")

	// ErrNotAssignable indicates a value cannot be stored in the attribute.
	ErrNotAssignable = errors.New("attr: value not assignable")

	// ErrReadOnly indicates the attribute cannot be written.
	ErrReadOnly = errors.New("attr: attribute is read-only")
)

// Descriptor describes a single attribute.
type Descriptor struct {
	// Name is the attribute identifier.
	Name string

	// Type is the declared type of the attribute.
	Type reflect.Type

	// ReadOnly is true when SetAttribute always fails.
	ReadOnly bool
}

// Target is the settable-attribute capability.
type Target interface {
	// DescribeAttribute returns the descriptor for name, or false if the
	// attribute does not exist.
	DescribeAttribute(name string) (Descriptor, bool)

	// GetAttribute returns the current value of name.
	GetAttribute(name string) (any, error)

	// SetAttribute stores value in name.
	SetAttribute(name string, value any) error
}

// Notifier is implemented by objects that want to hear about attribute
// rewrites performed by undo and redo.
type Notifier interface {
	AttributeChanged(name string)
}

// Resolve returns the Target capability for v. Values implementing Target
// are returned unchanged; pointers to structs are adapted with Reflect.
func Resolve(v any) (Target, error) {
	if IsNil(v) {
		return nil, ErrNilTarget
	}
	if t, ok := v.(Target); ok {
		return t, nil
	}
	return Reflect(v)
}

// NotifierOf returns the change-notification capability of v, if any.
// For reflection adapters the wrapped object is inspected.
func NotifierOf(v any) (Notifier, bool) {
	if n, ok := v.(Notifier); ok {
		return n, true
	}
	if s, ok := v.(*Struct); ok {
		n, ok := s.Object().(Notifier)
		return n, ok
	}
	return nil, false
}

// Lookup resolves name on t and fails with ErrUnknownAttribute if missing.
func Lookup(t Target, name string) (Descriptor, error) {
	d, ok := t.DescribeAttribute(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return d, nil
}

// CheckAssignable validates that value can be stored in an attribute
// described by d. A nil value is accepted and means the zero value.
func CheckAssignable(d Descriptor, value any) error {
	if value == nil || d.Type == nil {
		return nil
	}
	vt := reflect.TypeOf(value)
	if !vt.AssignableTo(d.Type) {
		return fmt.Errorf("%w: %s is not assignable to %q (%s)", ErrNotAssignable, vt, d.Name, d.Type)
	}
	return nil
}

// IsNil reports whether v is nil or a typed nil pointer-like value.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
