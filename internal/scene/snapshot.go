package scene

// Snapshot is a plain-data view of a document.
type Snapshot struct {
	Shapes []ShapeSnapshot   `json:"shapes" yaml:"shapes"`
	Layers []string          `json:"layers" yaml:"layers"`
	Tags   map[string]string `json:"tags" yaml:"tags"`
}

// ShapeSnapshot is a plain-data view of a shape.
type ShapeSnapshot struct {
	Name    string  `json:"name" yaml:"name"`
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Visible bool    `json:"visible" yaml:"visible"`
	Color   string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// Snapshot copies the current document state.
func (d *Document) Snapshot() Snapshot {
	snap := Snapshot{
		Shapes: make([]ShapeSnapshot, len(d.Shapes)),
		Layers: append([]string{}, d.Layers...),
		Tags:   make(map[string]string, len(d.Tags)),
	}
	for i, s := range d.Shapes {
		snap.Shapes[i] = ShapeSnapshot{
			Name:    s.Name,
			X:       s.X,
			Y:       s.Y,
			Visible: s.Visible,
			Color:   s.Color,
		}
	}
	for k, v := range d.Tags {
		snap.Tags[k] = v
	}
	return snap
}
