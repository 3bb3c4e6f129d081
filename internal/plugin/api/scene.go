package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/engine/history"
	plua "github.com/dshills/rewind/internal/plugin/lua"
	"github.com/dshills/rewind/internal/scene"
)

// SceneProvider is the document scripts edit. *scene.Document implements
// it.
type SceneProvider interface {
	AddShape(t *history.Tracker, name string) (*scene.Shape, error)
	RemoveShape(t *history.Tracker, name string) error
	SetAttr(t *history.Tracker, name, attribute string, value any) error
	Get(name, attribute string) (any, error)
	AddLayer(t *history.Tracker, layer string) error
	RemoveLayer(t *history.Tracker, layer string) error
	Tag(t *history.Tracker, key, value string) error
	Untag(t *history.Tracker, key string) error
	Snapshot() scene.Snapshot
}

// SceneModule implements the scene API module.
type SceneModule struct {
	ctx *Context
}

// NewSceneModule creates a new scene module.
func NewSceneModule(ctx *Context) *SceneModule {
	return &SceneModule{ctx: ctx}
}

// Name returns the module name.
func (m *SceneModule) Name() string {
	return "scene"
}

// Register registers the module into the Lua state.
func (m *SceneModule) Register(s *plua.State) error {
	s.RegisterModule(m.Name(), map[string]lua.LGFunction{
		"add":          m.add,
		"remove":       m.remove,
		"set":          m.set,
		"get":          m.get,
		"layer_add":    m.layerAdd,
		"layer_remove": m.layerRemove,
		"tag":          m.tag,
		"untag":        m.untag,
		"shapes":       m.shapes,
		"layers":       m.layers,
		"tags":         m.tags,
	})
	return nil
}

func (m *SceneModule) document(L *lua.LState) SceneProvider {
	if m.ctx == nil || m.ctx.Scene == nil {
		L.RaiseError("scene: no document available")
	}
	return m.ctx.Scene
}

// edit runs fn in a change scope. Inside history.scope the scope merges
// into the script's; otherwise it commits its own item.
func (m *SceneModule) edit(L *lua.LState, op string, before, after []any, fn func(t *history.Tracker) error) {
	if m.ctx == nil || m.ctx.History == nil {
		L.RaiseError("%s: no history available", op)
		return
	}
	err := m.ctx.History.Do(func(t *history.Tracker) error {
		t.SetAfterContext(after...)
		return fn(t)
	}, before...)
	if err != nil {
		L.RaiseError("%s: %v", op, err)
	}
}

// add(name)
// Adds a visible shape at the origin.
func (m *SceneModule) add(L *lua.LState) int {
	name := L.CheckString(1)
	doc := m.document(L)
	m.edit(L, "add", nil, []any{name}, func(t *history.Tracker) error {
		_, err := doc.AddShape(t, name)
		return err
	})
	return 0
}

// remove(name)
func (m *SceneModule) remove(L *lua.LState) int {
	name := L.CheckString(1)
	doc := m.document(L)
	m.edit(L, "remove", []any{name}, nil, func(t *history.Tracker) error {
		return doc.RemoveShape(t, name)
	})
	return 0
}

// set(name, attribute, value)
// Sets an attribute of a shape, e.g. set("box", "X", 10).
func (m *SceneModule) set(L *lua.LState) int {
	name := L.CheckString(1)
	attribute := L.CheckString(2)
	value := plua.ToGoValue(L.CheckAny(3))
	doc := m.document(L)

	after := name
	if attribute == "Name" {
		if s, ok := value.(string); ok {
			after = s
		}
	}
	m.edit(L, "set", []any{name}, []any{after}, func(t *history.Tracker) error {
		return doc.SetAttr(t, name, attribute, value)
	})
	return 0
}

// get(name, attribute) -> value
func (m *SceneModule) get(L *lua.LState) int {
	v, err := m.document(L).Get(L.CheckString(1), L.CheckString(2))
	if err != nil {
		L.RaiseError("get: %v", err)
		return 0
	}
	L.Push(plua.ToLuaValue(L, v))
	return 1
}

// layer_add(name)
func (m *SceneModule) layerAdd(L *lua.LState) int {
	layer := L.CheckString(1)
	doc := m.document(L)
	m.edit(L, "layer_add", nil, nil, func(t *history.Tracker) error {
		return doc.AddLayer(t, layer)
	})
	return 0
}

// layer_remove(name)
func (m *SceneModule) layerRemove(L *lua.LState) int {
	layer := L.CheckString(1)
	doc := m.document(L)
	m.edit(L, "layer_remove", nil, nil, func(t *history.Tracker) error {
		return doc.RemoveLayer(t, layer)
	})
	return 0
}

// tag(key, value)
func (m *SceneModule) tag(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)
	doc := m.document(L)
	m.edit(L, "tag", nil, nil, func(t *history.Tracker) error {
		return doc.Tag(t, key, value)
	})
	return 0
}

// untag(key)
func (m *SceneModule) untag(L *lua.LState) int {
	key := L.CheckString(1)
	doc := m.document(L)
	m.edit(L, "untag", nil, nil, func(t *history.Tracker) error {
		return doc.Untag(t, key)
	})
	return 0
}

// shapes() -> {{name, x, y, visible, color}, ...}
func (m *SceneModule) shapes(L *lua.LState) int {
	snap := m.document(L).Snapshot()
	tbl := L.CreateTable(len(snap.Shapes), 0)
	for _, s := range snap.Shapes {
		entry := L.CreateTable(0, 5)
		entry.RawSetString("name", lua.LString(s.Name))
		entry.RawSetString("x", lua.LNumber(s.X))
		entry.RawSetString("y", lua.LNumber(s.Y))
		entry.RawSetString("visible", lua.LBool(s.Visible))
		entry.RawSetString("color", lua.LString(s.Color))
		tbl.Append(entry)
	}
	L.Push(tbl)
	return 1
}

// layers() -> {name, ...}
func (m *SceneModule) layers(L *lua.LState) int {
	L.Push(plua.ToLuaValue(L, m.document(L).Snapshot().Layers))
	return 1
}

// tags() -> {key = value, ...}
func (m *SceneModule) tags(L *lua.LState) int {
	L.Push(plua.ToLuaValue(L, m.document(L).Snapshot().Tags))
	return 1
}
