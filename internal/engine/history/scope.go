package history

import "fmt"

// Checkpoint marks a position in the history that can be returned to.
//
//	cp := m.Checkpoint()
//	// ... several committed operations ...
//	m.UndoToCheckpoint(cp)
type Checkpoint struct {
	itemID string // item at the cursor, "" when the cursor is -1
}

// CheckpointAt returns a checkpoint for the item with the given ID, as
// reported by ItemInfo. An empty ID refers to the position before the
// first item.
func CheckpointAt(itemID string) Checkpoint {
	return Checkpoint{itemID: itemID}
}

// ID returns the ID of the item the checkpoint refers to.
func (cp Checkpoint) ID() string {
	return cp.itemID
}

// Checkpoint captures the current cursor position.
func (m *Manager) Checkpoint() Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canUndoLocked() {
		return Checkpoint{}
	}
	return Checkpoint{itemID: m.items[m.cursor].id}
}

// UndoToCheckpoint undoes items until the cursor is back at cp and returns
// the number of items undone. It fails with ErrCheckpointStale if the item
// cp refers to is no longer in the history.
func (m *Manager) UndoToCheckpoint(cp Checkpoint) (int, error) {
	target, err := m.checkpointIndex(cp)
	if err != nil {
		return 0, err
	}
	n := 0
	for m.Cursor() > target {
		if ok, _ := m.Undo(); !ok {
			break
		}
		n++
	}
	return n, nil
}

// RedoToCheckpoint redoes items until the cursor reaches cp and returns the
// number of items redone. Only items still on the redo side can be reached.
func (m *Manager) RedoToCheckpoint(cp Checkpoint) (int, error) {
	target, err := m.checkpointIndex(cp)
	if err != nil {
		return 0, err
	}
	n := 0
	for m.Cursor() < target {
		if ok, _ := m.Redo(); !ok {
			break
		}
		n++
	}
	return n, nil
}

func (m *Manager) checkpointIndex(cp Checkpoint) (int, error) {
	if cp.itemID == "" {
		return -1, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.id == cp.itemID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: item %s", ErrCheckpointStale, cp.itemID)
}
