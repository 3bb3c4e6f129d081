// Package scene is a small document model whose mutations are recorded in
// history. A Document holds shapes, layer names and tags; every mutating
// method records the matching change on the supplied scope so the edit can
// be undone.
package scene

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/dshills/rewind/internal/attr"
	"github.com/dshills/rewind/internal/engine/history"
)

// Errors returned by document operations.
var (
	ErrEmptyName     = errors.New("scene: empty name")
	ErrShapeExists   = errors.New("scene: shape already exists")
	ErrShapeNotFound = errors.New("scene: shape not found")
	ErrLayerExists   = errors.New("scene: layer already exists")
	ErrLayerNotFound = errors.New("scene: layer not found")
	ErrTagNotFound   = errors.New("scene: tag not found")
	ErrNoScope       = errors.New("scene: no change scope")
	ErrBadValue      = errors.New("scene: value not convertible")
)

// Shape is a named, positioned element of a document.
type Shape struct {
	attr.Observable

	Name    string
	X       float64
	Y       float64
	Visible bool
	Color   string
}

func (s *Shape) String() string {
	return s.Name
}

// Document is the root of the scene model.
// It is not safe for concurrent mutation.
type Document struct {
	Shapes []*Shape
	Layers []string
	Tags   map[string]string

	attrOpts []history.AttributeOption
}

// Option configures a Document.
type Option func(*Document)

// WithClonedValues deep-copies recorded attribute values.
func WithClonedValues(enabled bool) Option {
	return func(d *Document) {
		if enabled {
			d.attrOpts = append(d.attrOpts, history.WithClonedValues())
		}
	}
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{Tags: make(map[string]string)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Find returns the shape named name, or nil.
func (d *Document) Find(name string) *Shape {
	if i := d.index(name); i >= 0 {
		return d.Shapes[i]
	}
	return nil
}

func (d *Document) index(name string) int {
	return slices.IndexFunc(d.Shapes, func(s *Shape) bool { return s.Name == name })
}

// AddShape appends a visible shape at the origin.
func (d *Document) AddShape(t *history.Tracker, name string) (*Shape, error) {
	if t == nil {
		return nil, ErrNoScope
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	if d.Find(name) != nil {
		return nil, fmt.Errorf("%w: %q", ErrShapeExists, name)
	}

	s := &Shape{Name: name, Visible: true}
	c, err := history.NewListInsert(&d.Shapes, s)
	if err != nil {
		return nil, err
	}
	d.Shapes = append(d.Shapes, s)
	t.Record(c)
	return s, nil
}

// RemoveShape removes the named shape.
func (d *Document) RemoveShape(t *history.Tracker, name string) error {
	if t == nil {
		return ErrNoScope
	}
	i := d.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrShapeNotFound, name)
	}

	s := d.Shapes[i]
	c, err := history.NewListRemove(&d.Shapes, s, i)
	if err != nil {
		return err
	}
	d.Shapes = slices.Delete(d.Shapes, i, i+1)
	t.Record(c)
	return nil
}

// Get returns the value of an attribute of the named shape.
func (d *Document) Get(name, attribute string) (any, error) {
	s := d.Find(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrShapeNotFound, name)
	}
	target, err := attr.Reflect(s)
	if err != nil {
		return nil, err
	}
	return target.GetAttribute(attribute)
}

// SetAttr sets an attribute of the named shape. Numeric values are
// converted to the attribute's type.
func (d *Document) SetAttr(t *history.Tracker, name, attribute string, value any) error {
	if t == nil {
		return ErrNoScope
	}
	s := d.Find(name)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrShapeNotFound, name)
	}

	target, err := attr.Reflect(s)
	if err != nil {
		return err
	}
	desc, err := attr.Lookup(target, attribute)
	if err != nil {
		return err
	}
	value, err = convert(desc, value)
	if err != nil {
		return err
	}
	if attribute == "Name" {
		if v, _ := value.(string); v == "" {
			return ErrEmptyName
		} else if v != name && d.Find(v) != nil {
			return fmt.Errorf("%w: %q", ErrShapeExists, v)
		}
	}

	old, err := target.GetAttribute(attribute)
	if err != nil {
		return err
	}
	c, err := history.NewAttributeChange(s, attribute, old, value, d.attrOpts...)
	if err != nil {
		return err
	}
	if err := c.Redo(); err != nil {
		return err
	}
	t.Record(c)
	return nil
}

// AddLayer appends a layer name.
func (d *Document) AddLayer(t *history.Tracker, layer string) error {
	if t == nil {
		return ErrNoScope
	}
	if layer == "" {
		return ErrEmptyName
	}
	if slices.Contains(d.Layers, layer) {
		return fmt.Errorf("%w: %q", ErrLayerExists, layer)
	}

	c, err := history.NewListInsert(&d.Layers, layer)
	if err != nil {
		return err
	}
	d.Layers = append(d.Layers, layer)
	t.Record(c)
	return nil
}

// RemoveLayer removes a layer name.
func (d *Document) RemoveLayer(t *history.Tracker, layer string) error {
	if t == nil {
		return ErrNoScope
	}
	i := slices.Index(d.Layers, layer)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, layer)
	}

	c, err := history.NewListRemove(&d.Layers, layer, i)
	if err != nil {
		return err
	}
	d.Layers = slices.Delete(d.Layers, i, i+1)
	t.Record(c)
	return nil
}

// Tag sets a document tag. Replacing an existing tag records the removal
// of the old value followed by the insertion of the new one.
func (d *Document) Tag(t *history.Tracker, key, value string) error {
	if t == nil {
		return ErrNoScope
	}
	if key == "" {
		return ErrEmptyName
	}

	if old, ok := d.Tags[key]; ok {
		if old == value {
			return nil
		}
		rm, err := history.NewMapRemove(d.Tags, key, old)
		if err != nil {
			return err
		}
		delete(d.Tags, key)
		t.Record(rm)
	}

	ins, err := history.NewMapInsert(d.Tags, key, value)
	if err != nil {
		return err
	}
	d.Tags[key] = value
	t.Record(ins)
	return nil
}

// Untag removes a document tag.
func (d *Document) Untag(t *history.Tracker, key string) error {
	if t == nil {
		return ErrNoScope
	}
	old, ok := d.Tags[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTagNotFound, key)
	}

	c, err := history.NewMapRemove(d.Tags, key, old)
	if err != nil {
		return err
	}
	delete(d.Tags, key)
	t.Record(c)
	return nil
}

// TagKeys returns the tag keys in sorted order.
func (d *Document) TagKeys() []string {
	keys := make([]string, 0, len(d.Tags))
	for k := range d.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// convert coerces v to the attribute's declared type where a lossless or
// numeric conversion exists.
func convert(d attr.Descriptor, v any) (any, error) {
	if v == nil || d.Type == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(d.Type) {
		return v, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(d.Type.Kind()) {
		return rv.Convert(d.Type).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %T to %s for %q", ErrBadValue, v, d.Type, d.Name)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
