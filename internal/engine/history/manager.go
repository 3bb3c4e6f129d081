package history

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/dshills/rewind/internal/logging"
	"github.com/dshills/rewind/internal/metrics"
	"github.com/dshills/rewind/internal/notify"
)

// Observable properties announced after Commit, Undo, Redo and Clear.
const (
	PropertyCanUndo = "CanUndo"
	PropertyCanRedo = "CanRedo"
)

const eventSource = "history"

// Manager keeps a single linear history of Items with an undo/redo cursor.
//
// Items at or before the cursor can be undone; items after it can be
// redone. Commit, Undo, Redo and Clear are serialized by one mutex. The
// active-scope slot used for implicit scope nesting is guarded by a second,
// independent mutex.
type Manager struct {
	mu       sync.Mutex
	items    []*Item
	cursor   int
	maxItems int

	// Replay bookkeeping, held outside mu. Items completed by top-level
	// scopes while a replay runs wait in deferred until the last replay
	// ends.
	replayMu sync.Mutex
	replays  int
	deferred []*Item

	scopeMu sync.Mutex
	active  weak.Pointer[Tracker]

	nesting       Nesting
	leakDetection bool

	notifier *notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.History
}

// NewManager creates an empty history.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cursor:        -1,
		leakDetection: true,
		notifier:      notify.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.Component(nil, "history")
	}
	return m
}

var defaultManager atomic.Pointer[Manager]

// Default returns the process-wide manager, creating it on first use.
func Default() *Manager {
	if m := defaultManager.Load(); m != nil {
		return m
	}
	defaultManager.CompareAndSwap(nil, NewManager())
	return defaultManager.Load()
}

// SetDefault replaces the process-wide manager. A nil m resets it so the
// next call to Default creates a fresh one.
func SetDefault(m *Manager) {
	defaultManager.Store(m)
}

// Commit appends item to the history, discarding every item after the
// cursor first.
func (m *Manager) Commit(item *Item) error {
	if item == nil {
		return ErrNilItem
	}

	m.mu.Lock()
	canUndo, canRedo := m.canUndoLocked(), m.canRedoLocked()

	if tail := m.items[m.cursor+1:]; len(tail) > 0 {
		m.metrics.Discard(metrics.ReasonTruncated, len(tail))
		clear(tail)
	}
	m.items = append(m.items[:m.cursor+1], item)
	m.cursor = len(m.items) - 1
	m.trimLocked()

	m.metrics.Commit(item.Len())
	batch := m.stateEventsLocked(canUndo, canRedo)
	m.mu.Unlock()

	batch.Commit()
	return nil
}

// Undo reverts the item at the cursor and moves the cursor back. It returns
// false and no selection when there is nothing to undo.
func (m *Manager) Undo() (bool, []any) {
	ok, selection, batch, deferred := m.replay(func() (bool, []any) {
		if !m.canUndoLocked() {
			return false, nil
		}
		it := m.items[m.cursor]
		selection := it.Undo(m.reporter(it))
		m.cursor--
		return true, selection
	})
	m.metrics.Undo(ok)
	batch.Commit()
	m.commitDeferred(deferred)
	return ok, selection
}

// Redo moves the cursor forward and reapplies the item there. It returns
// false and no selection when there is nothing to redo.
func (m *Manager) Redo() (bool, []any) {
	ok, selection, batch, deferred := m.replay(func() (bool, []any) {
		if !m.canRedoLocked() {
			return false, nil
		}
		m.cursor++
		it := m.items[m.cursor]
		return true, it.Redo(m.reporter(it))
	})
	m.metrics.Redo(ok)
	batch.Commit()
	m.commitDeferred(deferred)
	return ok, selection
}

// replay runs step under the history mutex with the replay flag raised.
// State events are only produced when step succeeds. deferred holds the
// items that completed during the replay and must be committed once the
// caller has delivered the events.
func (m *Manager) replay(step func() (bool, []any)) (ok bool, selection []any, batch *notify.Batch, deferred []*Item) {
	m.beginReplay()
	defer func() { deferred = m.endReplay() }()

	m.mu.Lock()
	defer m.mu.Unlock()

	canUndo, canRedo := m.canUndoLocked(), m.canRedoLocked()
	ok, selection = step()
	if !ok {
		return false, nil, m.notifier.NewBatch(), nil
	}
	return true, selection, m.stateEventsLocked(canUndo, canRedo), nil
}

func (m *Manager) beginReplay() {
	m.replayMu.Lock()
	m.replays++
	m.replayMu.Unlock()
}

// endReplay lowers the replay flag and, when no replay is left running,
// hands back the deferred items.
func (m *Manager) endReplay() []*Item {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	m.replays--
	if m.replays > 0 {
		return nil
	}
	items := m.deferred
	m.deferred = nil
	return items
}

// deferCommit queues item if a replay is running. It reports whether the
// item was queued.
func (m *Manager) deferCommit(item *Item) bool {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	if m.replays == 0 {
		return false
	}
	m.deferred = append(m.deferred, item)
	return true
}

// commitDeferred commits items in the order their scopes completed. They
// land after the replayed step, so an undone item is truncated like any
// other redo entry.
func (m *Manager) commitDeferred(items []*Item) {
	for _, it := range items {
		if err := m.Commit(it); err != nil {
			m.logger.Error("commit deferred scope", "item", it.ID(), "err", err)
		}
	}
}

// Clear empties the history.
func (m *Manager) Clear() {
	m.mu.Lock()
	canUndo, canRedo := m.canUndoLocked(), m.canRedoLocked()
	m.items = nil
	m.cursor = -1
	batch := m.stateEventsLocked(canUndo, canRedo)
	m.mu.Unlock()

	batch.Commit()
}

// CanUndo reports whether an item is available to undo.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canUndoLocked()
}

// CanRedo reports whether an item is available to redo.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canRedoLocked()
}

// Replaying reports whether an Undo or Redo is in progress. Changes applied
// during replay are not new user actions.
//
// The flag is raised before the history mutex is taken, so a concurrent
// caller can see it while the replay is still waiting for the mutex.
func (m *Manager) Replaying() bool {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	return m.replays > 0
}

// Len returns the number of items in the history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Cursor returns the index of the item Undo would revert, or -1.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// MaxItems returns the history cap, 0 if unbounded.
func (m *Manager) MaxItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxItems
}

// SetMaxItems changes the history cap. If the history is longer, the oldest
// undoable items are dropped; items waiting to be redone are kept. Zero
// means unbounded; negative values are ignored.
func (m *Manager) SetMaxItems(n int) {
	if n < 0 {
		return
	}

	m.mu.Lock()
	canUndo, canRedo := m.canUndoLocked(), m.canRedoLocked()
	m.maxItems = n
	m.trimLocked()
	batch := m.stateEventsLocked(canUndo, canRedo)
	m.mu.Unlock()

	batch.Commit()
}

// Nesting returns the nesting mode used by Open.
func (m *Manager) Nesting() Nesting {
	return m.nesting
}

// Subscribe registers obs for every CanUndo and CanRedo event.
func (m *Manager) Subscribe(obs notify.Observer) *notify.Subscription {
	return m.notifier.Subscribe(obs)
}

// SubscribeProperty registers obs for PropertyCanUndo or PropertyCanRedo.
func (m *Manager) SubscribeProperty(name string, obs notify.Observer) *notify.Subscription {
	return m.notifier.SubscribeProperty(name, obs)
}

// UndoInfo returns info about undoable items, oldest first.
func (m *Manager) UndoInfo() []ItemInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return infos(m.items[:m.cursor+1])
}

// RedoInfo returns info about redoable items, next redo first.
func (m *Manager) RedoInfo() []ItemInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return infos(m.items[m.cursor+1:])
}

// PeekUndo returns info about the item Undo would revert.
func (m *Manager) PeekUndo() (ItemInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canUndoLocked() {
		return ItemInfo{}, false
	}
	return m.items[m.cursor].Info(), true
}

// PeekRedo returns info about the item Redo would reapply.
func (m *Manager) PeekRedo() (ItemInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canRedoLocked() {
		return ItemInfo{}, false
	}
	return m.items[m.cursor+1].Info(), true
}

func (m *Manager) canUndoLocked() bool {
	return m.cursor >= 0
}

func (m *Manager) canRedoLocked() bool {
	return m.cursor < len(m.items)-1
}

// trimLocked drops the oldest items beyond maxItems and shifts the cursor.
// Only undoable items are dropped; redo entries stay until the next Commit
// truncates them, so the history may stay above the cap meanwhile.
func (m *Manager) trimLocked() {
	excess := min(len(m.items)-m.maxItems, m.cursor+1)
	if m.maxItems <= 0 || excess <= 0 {
		m.metrics.State(len(m.items), m.cursor)
		return
	}
	clear(m.items[:excess])
	m.items = m.items[excess:]
	m.cursor = max(m.cursor-excess, -1)
	m.metrics.Discard(metrics.ReasonTrimmed, excess)
	m.metrics.State(len(m.items), m.cursor)
}

// stateEventsLocked builds the CanUndo/CanRedo events relative to the
// values observed before the operation. The batch is committed by the
// caller after mu is released.
func (m *Manager) stateEventsLocked(canUndo, canRedo bool) *notify.Batch {
	m.metrics.State(len(m.items), m.cursor)
	batch := m.notifier.NewBatch()
	batch.Set(PropertyCanUndo, canUndo, m.canUndoLocked(), eventSource)
	batch.Set(PropertyCanRedo, canRedo, m.canRedoLocked(), eventSource)
	return batch
}

// reporter returns the diagnostic sink for apply failures in it.
func (m *Manager) reporter(it *Item) ReportFunc {
	return func(c Change, op Op, err error) {
		m.logger.Warn("change failed",
			"item", it.ID(),
			"change", c.Description(),
			"op", string(op),
			"err", err,
		)
		m.metrics.ApplyFailure(string(op))
	}
}

func (m *Manager) activeLocked() *Tracker {
	return m.active.Value()
}

func (m *Manager) setActiveLocked(t *Tracker) {
	if t == nil {
		m.active = weak.Pointer[Tracker]{}
		return
	}
	m.active = weak.Make(t)
}

// releaseSlotLocked vacates the active-scope slot if t holds it. In
// NestImmediate mode the slot returns to the nearest open ancestor.
func (m *Manager) releaseSlotLocked(t *Tracker) {
	if m.activeLocked() != t {
		return
	}
	if m.nesting != NestImmediate {
		m.setActiveLocked(nil)
		return
	}
	p := t.parent
	for p != nil && p.Completed() {
		p = p.parent
	}
	m.setActiveLocked(p)
}

func infos(items []*Item) []ItemInfo {
	out := make([]ItemInfo, len(items))
	for i, it := range items {
		out[i] = it.Info()
	}
	return out
}
