package attr

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// fieldInfo describes one attribute-backed struct field.
type fieldInfo struct {
	index    []int
	name     string
	typ      reflect.Type
	readOnly bool
}

// typeInfo holds the attribute table for a struct type.
type typeInfo struct {
	fields map[string]fieldInfo
	names  []string
}

var typeCache sync.Map // map[reflect.Type]*typeInfo

// Struct adapts a pointer to a struct into a Target. Attributes are the
// exported, non-embedded fields of the struct, including fields promoted
// from embedded structs.
//
// The `attr` struct tag renames a field (`attr:"name"`), hides it
// (`attr:"-"`) or marks it read-only (`attr:",readonly"`).
type Struct struct {
	obj  any
	val  reflect.Value
	info *typeInfo
}

// Reflect adapts ptr, which must be a non-nil pointer to a struct.
func Reflect(ptr any) (*Struct, error) {
	if IsNil(ptr) {
		return nil, ErrNilTarget
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTarget, ptr)
	}
	return &Struct{
		obj:  ptr,
		val:  rv.Elem(),
		info: typeInfoFor(rv.Elem().Type()),
	}, nil
}

// Object returns the adapted pointer.
func (s *Struct) Object() any {
	return s.obj
}

// Names returns the attribute names in declaration order.
func (s *Struct) Names() []string {
	out := make([]string, len(s.info.names))
	copy(out, s.info.names)
	return out
}

// DescribeAttribute implements Target.
func (s *Struct) DescribeAttribute(name string) (Descriptor, bool) {
	f, ok := s.info.fields[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Name: f.name, Type: f.typ, ReadOnly: f.readOnly}, true
}

// GetAttribute implements Target.
func (s *Struct) GetAttribute(name string) (any, error) {
	f, ok := s.info.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return s.val.FieldByIndex(f.index).Interface(), nil
}

// SetAttribute implements Target. A nil value stores the zero value.
func (s *Struct) SetAttribute(name string, value any) error {
	f, ok := s.info.fields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	if f.readOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	field, err := s.val.FieldByIndexErr(f.index)
	if err != nil {
		return fmt.Errorf("attr: resolve %q: %w", name, err)
	}
	if !field.CanSet() {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	if value == nil {
		field.Set(reflect.Zero(f.typ))
		return nil
	}
	nv := reflect.ValueOf(value)
	if !nv.Type().AssignableTo(f.typ) {
		return fmt.Errorf("%w: %s is not assignable to %q (%s)", ErrNotAssignable, nv.Type(), name, f.typ)
	}
	field.Set(nv)
	return nil
}

func typeInfoFor(typ reflect.Type) *typeInfo {
	if info, ok := typeCache.Load(typ); ok {
		return info.(*typeInfo)
	}

	info := &typeInfo{fields: make(map[string]fieldInfo)}
	for _, field := range reflect.VisibleFields(typ) {
		if !field.IsExported() || field.Anonymous {
			continue
		}
		name, readOnly, skip := parseTag(field)
		if skip {
			continue
		}
		if _, dup := info.fields[name]; dup {
			continue
		}
		info.fields[name] = fieldInfo{
			index:    field.Index,
			name:     name,
			typ:      field.Type,
			readOnly: readOnly,
		}
		info.names = append(info.names, name)
	}

	actual, _ := typeCache.LoadOrStore(typ, info)
	return actual.(*typeInfo)
}

func parseTag(field reflect.StructField) (name string, readOnly, skip bool) {
	name = field.Name
	tag, ok := field.Tag.Lookup("attr")
	if !ok {
		return name, false, false
	}
	if tag == "-" {
		return "", false, true
	}

	parts := strings.Split(tag, ",")
	if p := strings.TrimSpace(parts[0]); p != "" {
		name = p
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "readonly" {
			readOnly = true
		}
	}
	return name, readOnly, false
}
