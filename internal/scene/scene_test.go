package scene

import (
	"errors"
	"slices"
	"testing"

	"github.com/dshills/rewind/internal/attr"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/logging"
)

func newTestManager() *history.Manager {
	return history.NewManager(history.WithLogger(logging.NewNop()), history.WithLeakDetection(false))
}

func names(d *Document) []string {
	var out []string
	for _, s := range d.Shapes {
		out = append(out, s.Name)
	}
	return out
}

// edit runs fn in one committed scope.
func edit(t *testing.T, m *history.Manager, fn func(tr *history.Tracker) error) {
	t.Helper()
	if err := m.Do(fn); err != nil {
		t.Fatalf("edit: %v", err)
	}
}

func TestDocumentShapes(t *testing.T) {
	m := newTestManager()
	d := New()

	edit(t, m, func(tr *history.Tracker) error {
		for _, n := range []string{"a", "b", "c"} {
			if _, err := d.AddShape(tr, n); err != nil {
				return err
			}
		}
		return nil
	})
	edit(t, m, func(tr *history.Tracker) error {
		return d.RemoveShape(tr, "b")
	})

	if got := names(d); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("shapes = %v", got)
	}

	m.Undo()
	if got := names(d); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("after undo remove shapes = %v", got)
	}
	m.Undo()
	if len(d.Shapes) != 0 {
		t.Errorf("after undo add shapes = %v", names(d))
	}
	m.Redo()
	m.Redo()
	if got := names(d); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("after redo shapes = %v", got)
	}
}

func TestDocumentShapeErrors(t *testing.T) {
	m := newTestManager()
	d := New()
	tr := m.Open()
	defer tr.Complete()

	if _, err := d.AddShape(tr, ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := d.AddShape(tr, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddShape(tr, "a"); !errors.Is(err, ErrShapeExists) {
		t.Errorf("duplicate err = %v", err)
	}
	if err := d.RemoveShape(tr, "zz"); !errors.Is(err, ErrShapeNotFound) {
		t.Errorf("remove missing err = %v", err)
	}
	if _, err := d.AddShape(nil, "b"); !errors.Is(err, ErrNoScope) {
		t.Errorf("nil scope err = %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("recorded %d changes, want 1", tr.Len())
	}
}

func TestDocumentSetAttr(t *testing.T) {
	m := newTestManager()
	d := New(WithClonedValues(true))

	edit(t, m, func(tr *history.Tracker) error {
		_, err := d.AddShape(tr, "box")
		return err
	})

	edit(t, m, func(tr *history.Tracker) error {
		if err := d.SetAttr(tr, "box", "X", 10); err != nil {
			return err
		}
		if err := d.SetAttr(tr, "box", "Color", "red"); err != nil {
			return err
		}
		return d.SetAttr(tr, "box", "Name", "crate")
	})

	s := d.Find("crate")
	if s == nil || s.X != 10 || s.Color != "red" {
		t.Fatalf("shape = %+v", s)
	}

	var changed []string
	s.OnChange(func(name string) { changed = append(changed, name) })

	m.Undo()
	if s.Name != "box" || s.X != 0 || s.Color != "" {
		t.Errorf("after undo shape = %+v", s)
	}
	if len(changed) != 3 {
		t.Errorf("attribute notifications = %v, want 3", changed)
	}

	got, err := d.Get("box", "Visible")
	if err != nil || got != true {
		t.Errorf("Get(Visible) = %v, %v", got, err)
	}
}

func TestDocumentSetAttrErrors(t *testing.T) {
	m := newTestManager()
	d := New()
	tr := m.Open()
	defer tr.Complete()

	_, _ = d.AddShape(tr, "a")
	_, _ = d.AddShape(tr, "b")

	tests := []struct {
		name  string
		shape string
		attr  string
		value any
		want  error
	}{
		{"missing shape", "zz", "X", 1.0, ErrShapeNotFound},
		{"unknown attribute", "a", "Depth", 1.0, attr.ErrUnknownAttribute},
		{"bad value", "a", "X", "far", ErrBadValue},
		{"rename to existing", "a", "Name", "b", ErrShapeExists},
		{"rename to empty", "a", "Name", "", ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.SetAttr(tr, tt.shape, tt.attr, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if tr.Len() != 2 {
		t.Errorf("failed edits were recorded: %d changes", tr.Len())
	}
}

func TestDocumentLayers(t *testing.T) {
	m := newTestManager()
	d := New()

	edit(t, m, func(tr *history.Tracker) error {
		for _, l := range []string{"bg", "mid", "fg"} {
			if err := d.AddLayer(tr, l); err != nil {
				return err
			}
		}
		return nil
	})
	edit(t, m, func(tr *history.Tracker) error {
		return d.RemoveLayer(tr, "mid")
	})

	m.Undo()
	if !slices.Equal(d.Layers, []string{"bg", "mid", "fg"}) {
		t.Errorf("layers = %v", d.Layers)
	}

	tr := m.Open()
	defer tr.Complete()
	if err := d.AddLayer(tr, "bg"); !errors.Is(err, ErrLayerExists) {
		t.Errorf("duplicate layer err = %v", err)
	}
	if err := d.RemoveLayer(tr, "top"); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("missing layer err = %v", err)
	}
}

func TestDocumentTags(t *testing.T) {
	m := newTestManager()
	d := New()

	edit(t, m, func(tr *history.Tracker) error {
		return d.Tag(tr, "author", "ann")
	})
	edit(t, m, func(tr *history.Tracker) error {
		return d.Tag(tr, "author", "bob")
	})
	edit(t, m, func(tr *history.Tracker) error {
		return d.Untag(tr, "author")
	})

	if _, ok := d.Tags["author"]; ok {
		t.Fatal("Untag left the tag")
	}
	m.Undo()
	if d.Tags["author"] != "bob" {
		t.Errorf("after undo untag author = %q", d.Tags["author"])
	}
	m.Undo()
	if d.Tags["author"] != "ann" {
		t.Errorf("after undo retag author = %q", d.Tags["author"])
	}
	m.Redo()
	if d.Tags["author"] != "bob" {
		t.Errorf("after redo retag author = %q", d.Tags["author"])
	}

	tr := m.Open()
	defer tr.Complete()
	if err := d.Tag(tr, "author", "bob"); err != nil || tr.Len() != 0 {
		t.Errorf("same-value tag recorded changes: %v, %d", err, tr.Len())
	}
	if err := d.Untag(tr, "missing"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("missing tag err = %v", err)
	}
	if got := d.TagKeys(); !slices.Equal(got, []string{"author"}) {
		t.Errorf("TagKeys() = %v", got)
	}
}

func TestDocumentSnapshot(t *testing.T) {
	m := newTestManager()
	d := New()

	edit(t, m, func(tr *history.Tracker) error {
		if _, err := d.AddShape(tr, "a"); err != nil {
			return err
		}
		if err := d.AddLayer(tr, "bg"); err != nil {
			return err
		}
		return d.Tag(tr, "k", "v")
	})

	snap := d.Snapshot()
	d.Shapes[0].X = 5
	d.Layers[0] = "changed"
	d.Tags["k"] = "changed"

	if snap.Shapes[0].X != 0 || snap.Layers[0] != "bg" || snap.Tags["k"] != "v" {
		t.Errorf("snapshot shares state with document: %+v", snap)
	}
	if !snap.Shapes[0].Visible {
		t.Error("new shapes should be visible")
	}
}
