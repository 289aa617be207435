package timeline

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel() *Model {
	n := 0
	return NewModel(testLogger(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}))
}

func mustClip(t *testing.T, m *Model, ref string, start, end, at float64, opts ClipOptions) Clip {
	t.Helper()
	c, err := m.CreateClip(ref, start, end, at, opts)
	require.NoError(t, err)
	return c
}

func TestCreateEmptyTracks(t *testing.T) {
	tr := CreateEmptyTracks()
	assert.Len(t, tr.Video, 1)
	assert.Len(t, tr.Audio, 1)
	assert.Empty(t, tr.Video[0])
}

func TestCreateClip_Defaults(t *testing.T) {
	m := newTestModel()

	c := mustClip(t, m, "BV1", 2, 7, -3, ClipOptions{})
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 5.0, c.DisplayDuration)
	assert.Equal(t, 0.0, c.TimelineStart)
	assert.Equal(t, StretchLoop, c.StretchMode)
	assert.Nil(t, c.Transform)
	assert.Equal(t, clipColors[0], c.Color)

	c2 := mustClip(t, m, "BV1", 0, 1, 0, ClipOptions{})
	assert.Equal(t, clipColors[1], c2.Color)
}

func TestCreateClip_InvalidInterval(t *testing.T) {
	m := newTestModel()

	_, err := m.CreateClip("BV1", 5, 5, 0, ClipOptions{})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = m.CreateClip("BV1", 6, 5, 0, ClipOptions{})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestPalette_WrapsAround(t *testing.T) {
	var p Palette
	first := p.Next()
	for i := 1; i < PaletteSize(); i++ {
		p.Next()
	}
	assert.Equal(t, first, p.Next())
}

func TestColor_Hex(t *testing.T) {
	assert.Equal(t, "#ff0000", Color{Hue: 0, Saturation: 100, Lightness: 50}.Hex())
}

func TestAddVideoTrack(t *testing.T) {
	m := newTestModel()
	var added []int
	m.TrackAdded.Subscribe(func(e TrackEvent) { added = append(added, e.TrackIndex) })

	tr, idx := m.AddVideoTrack(CreateEmptyTracks())
	assert.Equal(t, 1, idx)
	assert.Len(t, tr.Video, 2)
	assert.Equal(t, []int{1}, added)
}

func TestRemoveVideoTrack(t *testing.T) {
	m := newTestModel()
	tr, _ := m.AddVideoTrack(CreateEmptyTracks())
	tr, err := m.AddClip(tr, 1, mustClip(t, m, "BV1", 0, 5, 0, ClipOptions{}))
	require.NoError(t, err)

	_, err = m.RemoveVideoTrack(tr, 0)
	assert.ErrorIs(t, err, ErrCannotRemovePrimaryTrack)

	_, err = m.RemoveVideoTrack(tr, 5)
	assert.ErrorIs(t, err, ErrTrackNotFound)

	out, err := m.RemoveVideoTrack(tr, 1)
	require.NoError(t, err)
	assert.Len(t, out.Video, 1)
	assert.Len(t, tr.Video, 2, "input must not be mutated")
}

func TestRemoveVideoTrack_PrimaryAlwaysProtected(t *testing.T) {
	m := newTestModel()
	tr := CreateEmptyTracks()
	for i := 0; i < 3; i++ {
		var err error
		tr, err = m.AddClip(tr, 0, mustClip(t, m, "BV1", 0, 2, float64(i*2), ClipOptions{}))
		require.NoError(t, err)
	}
	_, err := m.RemoveVideoTrack(tr, 0)
	assert.ErrorIs(t, err, ErrCannotRemovePrimaryTrack)
}

func TestAddClip_GrowsTracks(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 3, ClipOptions{})

	tr, err := m.AddClip(CreateEmptyTracks(), 3, c)
	require.NoError(t, err)
	assert.Len(t, tr.Video, 4)
	assert.Equal(t, c.ID, tr.Video[3][0].ID)

	_, err = m.AddClip(tr, -1, c)
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestAddClip_PrimaryMirrorsAudio(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 0, ClipOptions{})

	tr, err := m.AddClip(CreateEmptyTracks(), 0, c)
	require.NoError(t, err)
	require.Len(t, tr.Audio[0], 1)
	assert.Equal(t, c.ID, tr.Audio[0][0].ID)
}

func TestRemoveClip(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 0, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	var removed []string
	m.ClipRemoved.Subscribe(func(e ClipEvent) { removed = append(removed, e.Clip.ID) })

	out, got, err := m.RemoveClip(tr, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Empty(t, out.Video[0])
	assert.Empty(t, out.Audio[0])
	assert.Equal(t, []string{c.ID}, removed)

	_, _, err = m.RemoveClip(out, c.ID)
	assert.ErrorIs(t, err, ErrClipNotFound)
}

func TestMoveClip_SameTrackClamps(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 4, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 1, c)

	out, err := m.MoveClip(tr, c.ID, -2, SameTrack)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Video[1][0].TimelineStart)
	assert.Equal(t, 4.0, tr.Video[1][0].TimelineStart)
}

func TestMoveClip_AcrossTracks(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 0, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	var moved []ClipEvent
	m.ClipMoved.Subscribe(func(e ClipEvent) { moved = append(moved, e) })

	out, err := m.MoveClip(tr, c.ID, 7, 2)
	require.NoError(t, err)
	assert.Empty(t, out.Video[0])
	require.Len(t, out.Video, 3)
	require.Len(t, out.Video[2], 1)
	assert.Equal(t, 7.0, out.Video[2][0].TimelineStart)
	assert.Equal(t, 1, out.ClipCount(), "a move never copies")
	require.Len(t, moved, 1)
	assert.Equal(t, 0, moved[0].FromTrack)
	assert.Equal(t, 2, moved[0].TrackIndex)

	_, err = m.MoveClip(out, "missing", 0, SameTrack)
	assert.ErrorIs(t, err, ErrClipNotFound)
}

func TestUpdateClip(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 5, 0, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 1, c)

	tf := Transform{X: 50, Y: 20, ScalePercent: 30, Opacity: 0.5, Centered: true}
	dur := 12.0
	out, err := m.UpdateClip(tr, c.ID, ClipUpdate{Transform: &tf, DisplayDuration: &dur})
	require.NoError(t, err)
	assert.Equal(t, tf, *out.Video[1][0].Transform)
	assert.Equal(t, 12.0, out.Video[1][0].DisplayDuration)
	assert.Nil(t, tr.Video[1][0].Transform)

	zero := 0.0
	_, err = m.UpdateClip(tr, c.ID, ClipUpdate{DisplayDuration: &zero})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestSplitClip_Unstretched(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 10, 0, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	out, first, second, err := m.SplitClip(tr, c.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, 0.0, first.SourceStart)
	assert.Equal(t, 4.0, first.SourceEnd)
	assert.Equal(t, 4.0, second.SourceStart)
	assert.Equal(t, 10.0, second.SourceEnd)
	assert.Equal(t, first.End(), second.TimelineStart)
	assert.Equal(t, 10.0, first.DisplayDuration+second.DisplayDuration)
	assert.Equal(t, c.Color, first.Color)
	assert.NotEqual(t, c.Color, second.Color)
	assert.NotEqual(t, c.ID, first.ID)
	assert.NotEqual(t, c.ID, second.ID)

	require.Len(t, out.Video[0], 2)
	assert.Equal(t, first.ID, out.Video[0][0].ID)
	assert.Equal(t, second.ID, out.Video[0][1].ID)
}

func TestSplitClip_ReplacesInPlace(t *testing.T) {
	m := newTestModel()
	tr := CreateEmptyTracks()
	a := mustClip(t, m, "A", 0, 4, 0, ClipOptions{})
	b := mustClip(t, m, "B", 0, 4, 4, ClipOptions{})
	c := mustClip(t, m, "C", 0, 4, 8, ClipOptions{})
	for _, clip := range []Clip{a, b, c} {
		tr, _ = m.AddClip(tr, 0, clip)
	}

	out, first, second, err := m.SplitClip(tr, b.ID, 6)
	require.NoError(t, err)

	ids := []string{}
	for _, clip := range out.Video[0] {
		ids = append(ids, clip.ID)
	}
	assert.Equal(t, []string{a.ID, first.ID, second.ID, c.ID}, ids)
}

func TestSplitClip_Stretched(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 10, 0, ClipOptions{DisplayDuration: 5})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	_, first, second, err := m.SplitClip(tr, c.ID, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, first.SourceEnd, 1e-9)
	assert.InDelta(t, 2.0, first.DisplayDuration, 1e-9)
	assert.InDelta(t, 4.0, second.SourceStart, 1e-9)
	assert.InDelta(t, 3.0, second.DisplayDuration, 1e-9)
}

func TestSplitClip_Rejections(t *testing.T) {
	m := newTestModel()
	c := mustClip(t, m, "BV1", 0, 10, 5, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	tests := []struct {
		name string
		at   float64
		want error
	}{
		{"at start", 5, ErrSplitOutOfRange},
		{"at end", 15, ErrSplitOutOfRange},
		{"before", 1, ErrSplitOutOfRange},
		{"too close to start", 5.3, ErrSplitTooCloseToEdge},
		{"too close to end", 14.8, ErrSplitTooCloseToEdge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, _, err := m.SplitClip(tr, c.ID, tt.at)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, out.Video[0], 1)
		})
	}

	_, _, _, err := m.SplitClip(tr, "nope", 7)
	assert.ErrorIs(t, err, ErrClipNotFound)
}

func TestSplitClip_MinSplitOption(t *testing.T) {
	m := NewModel(testLogger(), WithMinSplit(2))
	c := mustClip(t, m, "BV1", 0, 10, 0, ClipOptions{})
	tr, _ := m.AddClip(CreateEmptyTracks(), 0, c)

	_, _, _, err := m.SplitClip(tr, c.ID, 1.5)
	assert.ErrorIs(t, err, ErrSplitTooCloseToEdge)

	_, _, _, err = m.SplitClip(tr, c.ID, 2.5)
	assert.NoError(t, err)

	d := NewModel(testLogger(), WithMinSplit(0))
	c2 := mustClip(t, d, "BV1", 0, 10, 0, ClipOptions{})
	tr2, _ := d.AddClip(CreateEmptyTracks(), 0, c2)
	_, _, _, err = d.SplitClip(tr2, c2.ID, 0.6)
	assert.NoError(t, err)
}

func TestChangedFiresOnEveryMutation(t *testing.T) {
	m := newTestModel()
	changes := 0
	m.Changed.Subscribe(func(ChangeEvent) { changes++ })

	tr, _ := m.AddVideoTrack(CreateEmptyTracks())
	c := mustClip(t, m, "BV1", 0, 10, 0, ClipOptions{})
	tr, _ = m.AddClip(tr, 0, c)
	tr, _ = m.MoveClip(tr, c.ID, 1, SameTrack)
	tr, _, _, _ = m.SplitClip(tr, c.ID, 5)
	tr, _ = m.RemoveVideoTrack(tr, 1)
	_ = tr

	assert.Equal(t, 5, changes)
}

func TestClone_IsDeep(t *testing.T) {
	m := newTestModel()
	tf := DefaultTransform()
	c := mustClip(t, m, "BV1", 0, 10, 0, ClipOptions{Transform: &tf})
	tr, _ := m.AddClip(CreateEmptyTracks(), 1, c)

	cp := tr.Clone()
	cp.Video[1][0].TimelineStart = 99
	cp.Video[1][0].Transform.X = 99

	assert.Equal(t, 0.0, tr.Video[1][0].TimelineStart)
	assert.Equal(t, 10.0, tr.Video[1][0].Transform.X)
}
