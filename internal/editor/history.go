package editor

import "github.com/cutdeck/cutdeck-agent/internal/timeline"

// DefaultHistoryLimit bounds each of the undo and redo stacks.
const DefaultHistoryLimit = 50

// Snapshot is a deep, independent copy of the edit state.
type Snapshot struct {
	Tracks    timeline.Tracks
	Selection []string
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Tracks:    s.Tracks.Clone(),
		Selection: append([]string(nil), s.Selection...),
	}
}

// History keeps linear undo/redo stacks of snapshots.
type History struct {
	undo  []Snapshot
	redo  []Snapshot
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records the state from before an edit. Any redo entries are dropped,
// and the oldest entry is discarded once the limit is exceeded.
func (h *History) Push(before Snapshot) {
	h.undo = appendBounded(h.undo, before.clone(), h.limit)
	h.redo = nil
}

// Undo swaps current for the most recent undo entry.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	h.redo = appendBounded(h.redo, current.clone(), h.limit)
	s := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return s.clone(), true
}

// Redo swaps current for the most recent redo entry.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	h.undo = appendBounded(h.undo, current.clone(), h.limit)
	s := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return s.clone(), true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) UndoSize() int { return len(h.undo) }
func (h *History) RedoSize() int { return len(h.redo) }

func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

func appendBounded(stack []Snapshot, s Snapshot, limit int) []Snapshot {
	stack = append(stack, s)
	if len(stack) > limit {
		stack = append([]Snapshot(nil), stack[len(stack)-limit:]...)
	}
	return stack
}
