package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/engine/history"
	plua "github.com/dshills/rewind/internal/plugin/lua"
)

const scopeTypeName = "rewind.scope"

// HistoryProvider is the part of the history manager scripts can reach.
// *history.Manager implements it.
type HistoryProvider interface {
	Open(selection ...any) *history.Tracker
	Do(fn func(t *history.Tracker) error, selection ...any) error
	Undo() (bool, []any)
	Redo() (bool, []any)
	CanUndo() bool
	CanRedo() bool
	Clear()
	Len() int
	Cursor() int
	Replaying() bool
	Checkpoint() history.Checkpoint
	UndoToCheckpoint(cp history.Checkpoint) (int, error)
	RedoToCheckpoint(cp history.Checkpoint) (int, error)
	UndoInfo() []history.ItemInfo
	RedoInfo() []history.ItemInfo
}

// HistoryModule implements the history API module.
type HistoryModule struct {
	ctx *Context
}

// NewHistoryModule creates a new history module.
func NewHistoryModule(ctx *Context) *HistoryModule {
	return &HistoryModule{ctx: ctx}
}

// Name returns the module name.
func (m *HistoryModule) Name() string {
	return "history"
}

// Register registers the module into the Lua state.
func (m *HistoryModule) Register(s *plua.State) error {
	L := s.L

	mt := L.NewTypeMetatable(scopeTypeName)
	methods := L.NewTable()
	L.SetField(methods, "select", s.NewFunction(m.scopeSelect))
	L.SetField(methods, "label", s.NewFunction(m.scopeLabel))
	L.SetField(methods, "count", s.NewFunction(m.scopeCount))
	L.SetField(methods, "id", s.NewFunction(m.scopeID))
	L.SetField(mt, "__index", methods)

	s.RegisterModule(m.Name(), map[string]lua.LGFunction{
		"undo":       m.undo,
		"redo":       m.redo,
		"can_undo":   m.canUndo,
		"can_redo":   m.canRedo,
		"clear":      m.clear,
		"count":      m.count,
		"cursor":     m.cursor,
		"replaying":  m.replaying,
		"scope":      m.scope,
		"checkpoint": m.checkpoint,
		"undo_to":    m.undoTo,
		"redo_to":    m.redoTo,
		"items":      m.items,
	})
	return nil
}

func (m *HistoryModule) provider(L *lua.LState) HistoryProvider {
	if m.ctx == nil || m.ctx.History == nil {
		L.RaiseError("history: no history available")
	}
	return m.ctx.History
}

// undo() -> ok, {selection}
// Undoes the most recent item.
func (m *HistoryModule) undo(L *lua.LState) int {
	ok, selection := m.provider(L).Undo()
	L.Push(lua.LBool(ok))
	L.Push(selectionTable(L, selection))
	return 2
}

// redo() -> ok, {selection}
// Redoes the next undone item.
func (m *HistoryModule) redo(L *lua.LState) int {
	ok, selection := m.provider(L).Redo()
	L.Push(lua.LBool(ok))
	L.Push(selectionTable(L, selection))
	return 2
}

// can_undo() -> bool
func (m *HistoryModule) canUndo(L *lua.LState) int {
	L.Push(lua.LBool(m.provider(L).CanUndo()))
	return 1
}

// can_redo() -> bool
func (m *HistoryModule) canRedo(L *lua.LState) int {
	L.Push(lua.LBool(m.provider(L).CanRedo()))
	return 1
}

// clear()
// Empties the history.
func (m *HistoryModule) clear(L *lua.LState) int {
	m.provider(L).Clear()
	return 0
}

// count() -> number
// Returns the number of items in the history.
func (m *HistoryModule) count(L *lua.LState) int {
	L.Push(lua.LNumber(m.provider(L).Len()))
	return 1
}

// cursor() -> number
// Returns the 1-based position of the item undo would revert, 0 if none.
func (m *HistoryModule) cursor(L *lua.LState) int {
	L.Push(lua.LNumber(m.provider(L).Cursor() + 1))
	return 1
}

// replaying() -> bool
func (m *HistoryModule) replaying(L *lua.LState) int {
	L.Push(lua.LBool(m.provider(L).Replaying()))
	return 1
}

// scope(fn, selection...) -> fn results
// Runs fn(scope) inside a change scope. The scope is completed when fn
// returns or raises an error; the error is re-raised afterwards.
func (m *HistoryModule) scope(L *lua.LState) int {
	fn := L.CheckFunction(1)
	selection := argValues(L, 2)
	base := L.GetTop()

	t := m.provider(L).Open(selection...)
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(scopeTypeName))

	L.Push(fn)
	L.Push(ud)
	err := L.PCall(1, lua.MultRet, nil)
	t.Complete()
	if err != nil {
		L.RaiseError("scope: %v", err)
		return 0
	}
	return L.GetTop() - base
}

func checkScope(L *lua.LState) *history.Tracker {
	ud := L.CheckUserData(1)
	t, ok := ud.Value.(*history.Tracker)
	if !ok {
		L.ArgError(1, "scope expected")
		return nil
	}
	return t
}

// scope:select(items...)
// Sets the selection restored when the item is redone.
func (m *HistoryModule) scopeSelect(L *lua.LState) int {
	checkScope(L).SetAfterContext(argValues(L, 2)...)
	return 0
}

// scope:label(name) -> scope
// Names the item the scope commits.
func (m *HistoryModule) scopeLabel(L *lua.LState) int {
	checkScope(L).Label(L.CheckString(2))
	L.Push(L.Get(1))
	return 1
}

// scope:count() -> number
// Returns the number of changes recorded in the scope so far.
func (m *HistoryModule) scopeCount(L *lua.LState) int {
	L.Push(lua.LNumber(checkScope(L).Len()))
	return 1
}

// scope:id() -> string
func (m *HistoryModule) scopeID(L *lua.LState) int {
	L.Push(lua.LString(checkScope(L).ID()))
	return 1
}

// checkpoint() -> string
// Returns a handle for the current history position.
func (m *HistoryModule) checkpoint(L *lua.LState) int {
	L.Push(lua.LString(m.provider(L).Checkpoint().ID()))
	return 1
}

// undo_to(checkpoint) -> number
// Undoes back to a checkpoint and returns the number of items undone.
func (m *HistoryModule) undoTo(L *lua.LState) int {
	n, err := m.provider(L).UndoToCheckpoint(history.CheckpointAt(L.CheckString(1)))
	if err != nil {
		L.RaiseError("undo_to: %v", err)
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// redo_to(checkpoint) -> number
// Redoes forward to a checkpoint and returns the number of items redone.
func (m *HistoryModule) redoTo(L *lua.LState) int {
	n, err := m.provider(L).RedoToCheckpoint(history.CheckpointAt(L.CheckString(1)))
	if err != nil {
		L.RaiseError("redo_to: %v", err)
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// items() -> {{id, description, changes, undone}, ...}
// Lists the history oldest first.
func (m *HistoryModule) items(L *lua.LState) int {
	p := m.provider(L)
	undo, redo := p.UndoInfo(), p.RedoInfo()

	tbl := L.CreateTable(len(undo)+len(redo), 0)
	add := func(info history.ItemInfo, undone bool) {
		entry := L.CreateTable(0, 5)
		entry.RawSetString("id", lua.LString(info.ID))
		entry.RawSetString("label", lua.LString(info.Label))
		entry.RawSetString("description", lua.LString(info.Description))
		entry.RawSetString("changes", lua.LNumber(info.Changes))
		entry.RawSetString("undone", lua.LBool(undone))
		tbl.Append(entry)
	}
	for _, info := range undo {
		add(info, false)
	}
	for _, info := range redo {
		add(info, true)
	}

	L.Push(tbl)
	return 1
}

// argValues converts the arguments from position start on to Go values.
func argValues(L *lua.LState, start int) []any {
	n := L.GetTop()
	if n < start {
		return nil
	}
	out := make([]any, 0, n-start+1)
	for i := start; i <= n; i++ {
		out = append(out, plua.ToGoValue(L.Get(i)))
	}
	return out
}

func selectionTable(L *lua.LState, selection []any) *lua.LTable {
	tbl := L.CreateTable(len(selection), 0)
	for _, item := range selection {
		tbl.Append(plua.ToLuaValue(L, item))
	}
	return tbl
}
