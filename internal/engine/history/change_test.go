package history

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/dshills/rewind/internal/attr"
)

type widget struct {
	Name  string
	Count int
	Tags  []string
	Kind  string `attr:",readonly"`
}

type notifyingWidget struct {
	Name    string
	changed []string
}

func (w *notifyingWidget) AttributeChanged(name string) {
	w.changed = append(w.changed, name)
}

// brokenTarget accepts construction but fails or panics when applied.
type brokenTarget struct {
	panics bool
}

func (b *brokenTarget) DescribeAttribute(name string) (attr.Descriptor, bool) {
	return attr.Descriptor{Name: name}, name == "Value"
}

func (b *brokenTarget) GetAttribute(name string) (any, error) {
	return nil, nil
}

func (b *brokenTarget) SetAttribute(name string, value any) error {
	if b.panics {
		panic("target disposed")
	}
	return errors.New("target not settable")
}

// Attribute Change Tests

func TestNewAttributeChangeValidation(t *testing.T) {
	var nilWidget *widget

	tests := []struct {
		name    string
		target  any
		attr    string
		oldVal  any
		newVal  any
		wantErr error
	}{
		{"nil target", nil, "Name", "a", "b", ErrNilTarget},
		{"typed nil target", nilWidget, "Name", "a", "b", ErrNilTarget},
		{"empty name", &widget{}, "", "a", "b", attr.ErrUnknownAttribute},
		{"unknown attribute", &widget{}, "Missing", "a", "b", attr.ErrUnknownAttribute},
		{"old not assignable", &widget{}, "Name", 1, "b", attr.ErrNotAssignable},
		{"new not assignable", &widget{}, "Count", 1, "b", attr.ErrNotAssignable},
		{"read-only", &widget{}, "Kind", "a", "b", attr.ErrReadOnly},
		{"unsupported target", 42, "Name", "a", "b", attr.ErrUnsupportedTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAttributeChange(tt.target, tt.attr, tt.oldVal, tt.newVal)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if c != nil {
				t.Error("change should be nil on error")
			}
		})
	}
}

func TestAttributeChangeUndoRedo(t *testing.T) {
	w := &widget{Name: "A"}
	c, err := NewAttributeChange(w, "Name", "A", "B")
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}

	w.Name = "B"
	for i := 0; i < 2; i++ {
		if err := c.Undo(); err != nil {
			t.Fatalf("Undo: %v", err)
		}
		if w.Name != "A" {
			t.Errorf("after undo #%d Name = %q, want A", i+1, w.Name)
		}
	}
	for i := 0; i < 2; i++ {
		if err := c.Redo(); err != nil {
			t.Fatalf("Redo: %v", err)
		}
		if w.Name != "B" {
			t.Errorf("after redo #%d Name = %q, want B", i+1, w.Name)
		}
	}

	if c.Target() != w || c.Name() != "Name" || c.OldValue() != "A" || c.NewValue() != "B" {
		t.Error("accessors do not reflect construction arguments")
	}
	if c.Description() != "Set Name" {
		t.Errorf("Description() = %q", c.Description())
	}
}

func TestAttributeChangeNilMeansZero(t *testing.T) {
	w := &widget{Tags: []string{"x"}}
	c, err := NewAttributeChange(w, "Tags", nil, []string{"x"})
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}
	if err := c.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if w.Tags != nil {
		t.Errorf("Tags = %v, want nil", w.Tags)
	}
}

func TestAttributeChangeNotifies(t *testing.T) {
	w := &notifyingWidget{Name: "A"}
	c, err := NewAttributeChange(w, "Name", "A", "B")
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}

	_ = c.Redo()
	_ = c.Undo()

	if !slices.Equal(w.changed, []string{"Name", "Name"}) {
		t.Errorf("changed = %v, want [Name Name]", w.changed)
	}
}

func TestAttributeChangeClonedValues(t *testing.T) {
	w := &widget{}
	newTags := []string{"a", "b"}
	c, err := NewAttributeChange(w, "Tags", nil, newTags, WithClonedValues())
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}

	newTags[0] = "mutated"
	_ = c.Redo()
	if w.Tags[0] != "a" {
		t.Errorf("Tags[0] = %q, want a", w.Tags[0])
	}

	w.Tags[1] = "mutated"
	_ = c.Undo()
	_ = c.Redo()
	if !slices.Equal(w.Tags, []string{"a", "b"}) {
		t.Errorf("Tags = %v, want [a b]", w.Tags)
	}
}

func TestAttributeChangeApplyFailure(t *testing.T) {
	c, err := NewAttributeChange(&brokenTarget{}, "Value", 1, 2)
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}
	if err := c.Redo(); err == nil {
		t.Error("Redo should fail on a target that rejects the set")
	}

	p, err := NewAttributeChange(&brokenTarget{panics: true}, "Value", 1, 2)
	if err != nil {
		t.Fatalf("NewAttributeChange: %v", err)
	}
	if err := apply(p, OpUndo); !errors.Is(err, ErrApplyPanic) {
		t.Errorf("apply err = %v, want ErrApplyPanic", err)
	}
}

// List Change Tests

func TestListInsertChange(t *testing.T) {
	list := []string{"a"}
	c, err := NewListInsert(&list, "b")
	if err != nil {
		t.Fatalf("NewListInsert: %v", err)
	}

	_ = c.Redo()
	_ = c.Redo()
	if !slices.Equal(list, []string{"a", "b"}) {
		t.Errorf("after redo list = %v, want [a b]", list)
	}

	_ = c.Undo()
	_ = c.Undo()
	if !slices.Equal(list, []string{"a"}) {
		t.Errorf("after undo list = %v, want [a]", list)
	}
	if c.Element() != "b" {
		t.Errorf("Element() = %q", c.Element())
	}
}

func TestListChangeValidation(t *testing.T) {
	var nilPtr *widget
	ptrs := []*widget{}

	if _, err := NewListInsert[string](nil, "a"); !errors.Is(err, ErrNilTarget) {
		t.Errorf("insert nil list err = %v, want ErrNilTarget", err)
	}
	if _, err := NewListInsert(&ptrs, nilPtr); !errors.Is(err, ErrNilElement) {
		t.Errorf("insert nil element err = %v, want ErrNilElement", err)
	}
	if _, err := NewListRemove[string](nil, "a", 0); !errors.Is(err, ErrNilTarget) {
		t.Errorf("remove nil list err = %v, want ErrNilTarget", err)
	}
	if _, err := NewListRemove(&ptrs, nilPtr, 0); !errors.Is(err, ErrNilElement) {
		t.Errorf("remove nil element err = %v, want ErrNilElement", err)
	}
}

func TestListRemoveChange(t *testing.T) {
	tests := []struct {
		name   string
		start  []string
		elem   string
		index  int
		mutate func(*[]string)
		want   []string
	}{
		{
			name:  "restores original index",
			start: []string{"a", "b", "c", "d"},
			elem:  "b",
			index: 1,
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:   "index still valid after insert before it",
			start:  []string{"a", "b", "c"},
			elem:   "b",
			index:  1,
			mutate: func(l *[]string) { *l = slices.Insert(*l, 0, "x") },
			want:   []string{"x", "b", "a", "c"},
		},
		{
			name:   "index out of range appends",
			start:  []string{"a", "b", "c"},
			elem:   "c",
			index:  2,
			mutate: func(l *[]string) { *l = (*l)[:1] },
			want:   []string{"a", "c"},
		},
		{
			name:  "negative index appends",
			start: []string{"a", "b"},
			elem:  "a",
			index: -1,
			want:  []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := slices.Clone(tt.start)
			c, err := NewListRemove(&list, tt.elem, tt.index)
			if err != nil {
				t.Fatalf("NewListRemove: %v", err)
			}

			_ = c.Redo()
			if slices.Contains(list, tt.elem) {
				t.Fatalf("Redo left %q in %v", tt.elem, list)
			}
			if tt.mutate != nil {
				tt.mutate(&list)
			}

			_ = c.Undo()
			_ = c.Undo()
			if !slices.Equal(list, tt.want) {
				t.Errorf("after undo list = %v, want %v", list, tt.want)
			}

			_ = c.Redo()
			_ = c.Redo()
			if slices.Contains(list, tt.elem) {
				t.Errorf("after redo list = %v still contains %q", list, tt.elem)
			}
		})
	}
}

// Map Change Tests

func TestMapInsertChange(t *testing.T) {
	m := map[string]int{}
	c, err := NewMapInsert(m, "k", 1)
	if err != nil {
		t.Fatalf("NewMapInsert: %v", err)
	}

	_ = c.Redo()
	m["k"] = 5
	_ = c.Redo()
	if m["k"] != 5 {
		t.Errorf("Redo overwrote existing key: %d", m["k"])
	}

	_ = c.Undo()
	_ = c.Undo()
	if _, ok := m["k"]; ok {
		t.Error("Undo left key in map")
	}
	if c.Key() != "k" || c.Value() != 1 {
		t.Error("accessors do not reflect construction arguments")
	}
}

func TestMapRemoveChange(t *testing.T) {
	m := map[string]int{"k": 1}
	c, err := NewMapRemove(m, "k", 1)
	if err != nil {
		t.Fatalf("NewMapRemove: %v", err)
	}

	_ = c.Redo()
	_ = c.Redo()
	if _, ok := m["k"]; ok {
		t.Error("Redo left key in map")
	}

	_ = c.Undo()
	_ = c.Undo()
	if m["k"] != 1 {
		t.Errorf("m[k] = %d, want 1", m["k"])
	}

	m["k"] = 7
	_ = c.Undo()
	if m["k"] != 7 {
		t.Errorf("Undo overwrote existing key: %d", m["k"])
	}
}

func TestMapChangeValidation(t *testing.T) {
	var nilMap map[string]int
	var nilVal *widget

	if _, err := NewMapInsert(nilMap, "k", 1); !errors.Is(err, ErrNilTarget) {
		t.Errorf("insert nil map err = %v, want ErrNilTarget", err)
	}
	if _, err := NewMapRemove(nilMap, "k", 1); !errors.Is(err, ErrNilTarget) {
		t.Errorf("remove nil map err = %v, want ErrNilTarget", err)
	}
	if _, err := NewMapInsert(map[string]*widget{}, "k", nilVal); !errors.Is(err, ErrNilElement) {
		t.Errorf("insert nil value err = %v, want ErrNilElement", err)
	}
	if _, err := NewMapRemove(map[any]int{}, any(nil), 1); !errors.Is(err, ErrNilElement) {
		t.Errorf("remove nil key err = %v, want ErrNilElement", err)
	}
}

func TestChangeDescriptions(t *testing.T) {
	list := []int{1}
	m := map[string]bool{}

	ins, _ := NewListInsert(&list, 2)
	rem, _ := NewListRemove(&list, 1, 0)
	mins, _ := NewMapInsert(m, "a", true)
	mrem, _ := NewMapRemove(m, "a", true)

	tests := []struct {
		change Change
		want   string
	}{
		{ins, "Insert 2"},
		{rem, "Remove 1 at 0"},
		{mins, "Insert key a"},
		{mrem, "Remove key a"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.change), func(t *testing.T) {
			if got := tt.change.Description(); got != tt.want {
				t.Errorf("Description() = %q, want %q", got, tt.want)
			}
		})
	}
}
