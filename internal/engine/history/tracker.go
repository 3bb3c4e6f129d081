package history

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/rewind/internal/metrics"
)

// Tracker is a change scope. It accumulates changes and, when completed,
// either commits them to its manager as one Item or merges them into the
// enclosing scope.
//
// A Tracker must be completed on every exit path, usually with
// defer t.Complete().
type Tracker struct {
	m      *Manager
	id     string
	parent *Tracker
	before []any

	// Opened by a change being replayed; its top-level commit is dropped.
	replayed bool

	mu        sync.Mutex
	label     string
	after     []any
	changes   []Change
	completed bool

	probe   *leakProbe
	cleanup runtime.Cleanup
}

// leakProbe is the state the leak diagnostic needs. It must not reference
// the Tracker, or the tracker would never become unreachable.
type leakProbe struct {
	m     *Manager
	id    string
	label atomic.Value // string
	done  atomic.Bool
}

// Open starts a change scope on the default manager.
func Open(selection ...any) *Tracker {
	return Default().Open(selection...)
}

// Open starts a change scope. selection is snapshotted as both the before
// and the after context. The enclosing scope, if any, is taken from the
// manager's active-scope slot according to the nesting mode.
//
// A scope opened while the manager is replaying is taken to be a side
// effect of the replayed change: if it ends up top-level its changes are
// discarded. The slot is shared by every goroutine, so code that edits
// concurrently with Undo or Redo should use OpenWithin.
func (m *Manager) Open(selection ...any) *Tracker {
	t := m.newTracker(selection)
	replaying := m.Replaying()

	m.scopeMu.Lock()
	defer m.scopeMu.Unlock()

	t.parent = m.activeLocked()
	t.replayed = replaying || (t.parent != nil && t.parent.replayed)
	switch m.nesting {
	case NestImmediate:
		m.setActiveLocked(t)
	default:
		if t.parent == nil {
			m.setActiveLocked(t)
		}
	}
	return t
}

// OpenWithin starts a change scope whose enclosing scope is parent. The
// active-scope slot is neither consulted nor claimed. A nil parent yields
// a top-level scope that always commits, even when it completes during a
// replay.
func (m *Manager) OpenWithin(parent *Tracker, selection ...any) *Tracker {
	t := m.newTracker(selection)
	t.parent = parent
	t.replayed = parent != nil && parent.replayed
	return t
}

// Do runs fn inside a new change scope and completes the scope on every exit
// path, including panics. Changes recorded before fn fails are still
// committed, since the mutations they describe already happened.
func (m *Manager) Do(fn func(t *Tracker) error, selection ...any) error {
	t := m.Open(selection...)
	defer t.Complete()
	return fn(t)
}

func (m *Manager) newTracker(selection []any) *Tracker {
	t := &Tracker{
		m:      m,
		id:     uuid.NewString(),
		before: cloneSlice(selection),
		after:  cloneSlice(selection),
	}
	if m.leakDetection {
		t.probe = &leakProbe{m: m, id: t.id}
		t.cleanup = runtime.AddCleanup(t, reportLeak, t.probe)
	}
	return t
}

func reportLeak(p *leakProbe) {
	if p.done.Load() {
		return
	}
	label, _ := p.label.Load().(string)
	p.m.logger.Warn("change scope leaked", "scope", p.id, "label", label)
	p.m.metrics.LeakedScope()
}

// ID returns the unique scope identifier.
func (t *Tracker) ID() string {
	return t.id
}

// Manager returns the manager the scope commits to.
func (t *Tracker) Manager() *Manager {
	return t.m
}

// Parent returns the enclosing scope, or nil for a top-level scope.
func (t *Tracker) Parent() *Tracker {
	return t.parent
}

// Label names the scope. The label is carried by the committed Item.
func (t *Tracker) Label(name string) *Tracker {
	t.mu.Lock()
	t.label = name
	t.mu.Unlock()
	if t.probe != nil {
		t.probe.label.Store(name)
	}
	return t
}

// SetAfterContext replaces the after-selection snapshot.
func (t *Tracker) SetAfterContext(items ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		t.m.logger.Warn("set after context on completed scope", "scope", t.id)
		return
	}
	t.after = cloneSlice(items)
}

// Record appends c to the pending changes. A nil change is ignored.
func (t *Tracker) Record(c Change) {
	if c == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		t.m.logger.Warn("record on completed scope", "scope", t.id, "change", c.Description())
		return
	}
	t.changes = append(t.changes, c)
}

// Len returns the number of pending changes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.changes)
}

// Before returns a copy of the before-selection snapshot.
func (t *Tracker) Before() []any {
	return cloneSlice(t.before)
}

// After returns a copy of the after-selection snapshot.
func (t *Tracker) After() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneSlice(t.after)
}

// Completed reports whether Complete has run.
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Complete ends the scope. With no pending changes nothing is committed or
// merged. A top-level scope commits an Item to the manager; a nested scope
// appends its changes to the enclosing scope. Complete is idempotent.
//
// The slot mutex is released before the item is committed, so two
// top-level scopes completing at the same time may commit in either order.
// An item completed while an Undo or Redo runs is committed when the
// replay ends.
func (t *Tracker) Complete() {
	m := t.m

	m.scopeMu.Lock()
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		m.scopeMu.Unlock()
		return
	}
	t.completed = true
	label, after, changes := t.label, t.after, t.changes
	t.changes = nil
	t.mu.Unlock()

	t.stopProbe()
	m.releaseSlotLocked(t)

	merged := len(changes) == 0 || t.mergeIntoParent(changes)
	m.scopeMu.Unlock()

	if merged {
		return
	}

	if t.replayed {
		m.logger.Debug("discarding changes made by replay", "scope", t.id, "changes", len(changes))
		m.metrics.Discard(metrics.ReasonReplaying, 1)
		return
	}

	// Never take the history mutex while a replay may hold it on this
	// goroutine.
	item := newItem(label, t.before, after, changes)
	if m.deferCommit(item) {
		m.logger.Debug("commit deferred until replay ends", "scope", t.id, "changes", len(changes))
		return
	}
	if err := m.Commit(item); err != nil {
		m.logger.Error("commit scope", "scope", t.id, "err", err)
	}
}

// mergeIntoParent appends changes to the enclosing scope. It reports false
// when there is no open parent and the caller must commit instead.
func (t *Tracker) mergeIntoParent(changes []Change) bool {
	p := t.parent
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		t.m.logger.Warn("enclosing scope already completed, committing standalone",
			"scope", t.id, "parent", p.id, "changes", len(changes))
		return false
	}
	p.changes = append(p.changes, changes...)
	t.m.metrics.Merge()
	return true
}

func (t *Tracker) stopProbe() {
	if t.probe == nil {
		return
	}
	t.probe.done.Store(true)
	t.cleanup.Stop()
}
