package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

func snap(n int) Snapshot {
	tr := timeline.CreateEmptyTracks()
	for i := 0; i < n; i++ {
		tr.Video[0] = append(tr.Video[0], timeline.Clip{ID: "c", DisplayDuration: 1})
	}
	return Snapshot{Tracks: tr}
}

func TestHistory_UndoRedo(t *testing.T) {
	h := NewHistory(10)
	assert.False(t, h.CanUndo())

	h.Push(snap(0))
	h.Push(snap(1))

	s, ok := h.Undo(snap(2))
	assert.True(t, ok)
	assert.Equal(t, 1, s.Tracks.ClipCount())
	assert.Equal(t, 1, h.RedoSize())

	s, ok = h.Redo(s)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Tracks.ClipCount())

	_, ok = h.Redo(s)
	assert.False(t, ok)
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Push(snap(i))
	}
	assert.Equal(t, 3, h.UndoSize())

	s, _ := h.Undo(snap(5))
	assert.Equal(t, 4, s.Tracks.ClipCount())
	h.Undo(s)
	s, _ = h.Undo(s)
	assert.Equal(t, 2, s.Tracks.ClipCount())
	_, ok := h.Undo(s)
	assert.False(t, ok)
}

func TestHistory_PushCopies(t *testing.T) {
	h := NewHistory(3)
	s := snap(1)
	s.Selection = []string{"a"}
	h.Push(s)

	s.Tracks.Video[0][0].ID = "mutated"
	s.Selection[0] = "b"

	got, _ := h.Undo(snap(0))
	assert.Equal(t, "c", got.Tracks.Video[0][0].ID)
	assert.Equal(t, []string{"a"}, got.Selection)
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(0)
	h.Push(snap(0))
	h.Clear()
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}
