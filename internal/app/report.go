package app

import (
	"time"

	"github.com/dshills/rewind/internal/scene"
)

// Report is a printable view of the scene and its history.
type Report struct {
	Scene   scene.Snapshot `json:"scene" yaml:"scene"`
	History []HistoryEntry `json:"history" yaml:"history"`
	// Cursor is the index of the item undo would revert, -1 if none.
	Cursor int `json:"cursor" yaml:"cursor"`
}

// HistoryEntry describes one history item.
type HistoryEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Changes     int       `json:"changes" yaml:"changes"`
	Undone      bool      `json:"undone" yaml:"undone"`
	Time        time.Time `json:"time" yaml:"time"`
}

// Report captures the current scene and history.
func (app *Application) Report() Report {
	undo, redo := app.history.UndoInfo(), app.history.RedoInfo()

	r := Report{
		Scene:   app.scene.Snapshot(),
		History: make([]HistoryEntry, 0, len(undo)+len(redo)),
		Cursor:  len(undo) - 1,
	}
	for _, info := range undo {
		r.History = append(r.History, HistoryEntry{
			ID:          info.ID,
			Description: info.Description,
			Changes:     info.Changes,
			Time:        info.Timestamp,
		})
	}
	for _, info := range redo {
		r.History = append(r.History, HistoryEntry{
			ID:          info.ID,
			Description: info.Description,
			Changes:     info.Changes,
			Undone:      true,
			Time:        info.Timestamp,
		})
	}
	return r
}
