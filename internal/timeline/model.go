// Package timeline holds the multi-track clip model and the pure operations
// over it. Every mutating operation takes a Tracks value, returns an updated
// deep copy and announces the change on the model's feeds.
package timeline

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/cutdeck/cutdeck-agent/internal/event"
)

type TrackEvent struct {
	TrackIndex int
	Clips      []Clip
}

type ClipEvent struct {
	Clip       Clip
	TrackIndex int
	FromTrack  int
}

// ChangeEvent carries the tracks produced by a mutation. Receivers must not
// modify it.
type ChangeEvent struct {
	Tracks Tracks
}

type Model struct {
	palette  Palette
	newID    func() string
	minSplit float64

	TrackAdded   *event.Feed[TrackEvent]
	TrackRemoved *event.Feed[TrackEvent]
	ClipAdded    *event.Feed[ClipEvent]
	ClipRemoved  *event.Feed[ClipEvent]
	ClipUpdated  *event.Feed[ClipEvent]
	ClipMoved    *event.Feed[ClipEvent]
	Changed      *event.Feed[ChangeEvent]
}

type Option func(*Model)

// WithMinSplit sets the shortest source span a split may leave on either
// side. Non-positive values keep MinSplitSeconds.
func WithMinSplit(seconds float64) Option {
	return func(m *Model) {
		if seconds > 0 {
			m.minSplit = seconds
		}
	}
}

// WithIDGenerator replaces the random clip id source.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) { m.newID = fn }
}

func NewModel(logger *slog.Logger, opts ...Option) *Model {
	m := &Model{
		newID:        func() string { return "clip-" + uuid.NewString() },
		minSplit:     MinSplitSeconds,
		TrackAdded:   event.NewFeed[TrackEvent]("track_added", logger),
		TrackRemoved: event.NewFeed[TrackEvent]("track_removed", logger),
		ClipAdded:    event.NewFeed[ClipEvent]("clip_added", logger),
		ClipRemoved:  event.NewFeed[ClipEvent]("clip_removed", logger),
		ClipUpdated:  event.NewFeed[ClipEvent]("clip_updated", logger),
		ClipMoved:    event.NewFeed[ClipEvent]("clip_moved", logger),
		Changed:      event.NewFeed[ChangeEvent]("tracks_changed", logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ClipOptions struct {
	Title string
	// DisplayDuration defaults to the source span when zero.
	DisplayDuration float64
	Transform       *Transform
	// Color defaults to the next palette entry when nil.
	Color       *Color
	StretchMode StretchMode
}

// CreateClip builds a clip with a fresh id. All optional fields are resolved
// here; nothing downstream treats a zero value as "use the default".
func (m *Model) CreateClip(sourceRef string, sourceStart, sourceEnd, timelineStart float64, opts ClipOptions) (Clip, error) {
	if !(sourceEnd > sourceStart) {
		return Clip{}, fmt.Errorf("%w: [%.3f, %.3f)", ErrInvalidInterval, sourceStart, sourceEnd)
	}

	c := Clip{
		ID:              m.newID(),
		SourceRef:       sourceRef,
		Title:           opts.Title,
		SourceStart:     sourceStart,
		SourceEnd:       sourceEnd,
		TimelineStart:   math.Max(0, timelineStart),
		DisplayDuration: sourceEnd - sourceStart,
		StretchMode:     StretchLoop,
	}
	if opts.DisplayDuration > 0 {
		c.DisplayDuration = opts.DisplayDuration
	}
	if opts.StretchMode != "" {
		c.StretchMode = opts.StretchMode
	}
	if opts.Transform != nil {
		tr := *opts.Transform
		c.Transform = &tr
	}
	if opts.Color != nil {
		c.Color = *opts.Color
	} else {
		c.Color = m.palette.Next()
	}
	return c, nil
}

func (m *Model) AddVideoTrack(t Tracks) (Tracks, int) {
	out := t.Clone()
	out.Video = append(out.Video, Track{})
	index := len(out.Video) - 1

	m.TrackAdded.Emit(TrackEvent{TrackIndex: index})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, index
}

func (m *Model) RemoveVideoTrack(t Tracks, index int) (Tracks, error) {
	if index == PrimaryTrack {
		return t, ErrCannotRemovePrimaryTrack
	}
	if index < 0 || index >= len(t.Video) {
		return t, fmt.Errorf("%w: %d", ErrTrackNotFound, index)
	}

	out := t.Clone()
	removed := out.Video[index]
	out.Video = append(out.Video[:index], out.Video[index+1:]...)

	m.TrackRemoved.Emit(TrackEvent{TrackIndex: index, Clips: removed})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, nil
}

// AddClip appends c to the given video track, creating empty tracks up to
// trackIndex when needed.
func (m *Model) AddClip(t Tracks, trackIndex int, c Clip) (Tracks, error) {
	if trackIndex < 0 {
		return t, fmt.Errorf("%w: %d", ErrTrackNotFound, trackIndex)
	}

	out := t.Clone()
	out.ensureVideoTrack(trackIndex)
	out.Video[trackIndex] = append(out.Video[trackIndex], c.clone())
	if trackIndex == PrimaryTrack {
		out.syncAudio()
	}

	m.ClipAdded.Emit(ClipEvent{Clip: c, TrackIndex: trackIndex, FromTrack: trackIndex})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, nil
}

func (m *Model) RemoveClip(t Tracks, clipID string) (Tracks, Clip, error) {
	ref, ok := t.FindClipByID(clipID)
	if !ok {
		return t, Clip{}, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}

	out := t.Clone()
	track := out.Video[ref.TrackIndex]
	out.Video[ref.TrackIndex] = append(track[:ref.ClipIndex], track[ref.ClipIndex+1:]...)
	if ref.TrackIndex == PrimaryTrack {
		out.syncAudio()
	}

	m.ClipRemoved.Emit(ClipEvent{Clip: ref.Clip, TrackIndex: ref.TrackIndex, FromTrack: ref.TrackIndex})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, ref.Clip, nil
}

// SameTrack keeps a moved clip on its current track.
const SameTrack = -1

// MoveClip repositions a clip, clamping the new start to 0. A change of track
// removes the clip from its old track and appends it to the new one.
func (m *Model) MoveClip(t Tracks, clipID string, newStart float64, newTrack int) (Tracks, error) {
	ref, ok := t.FindClipByID(clipID)
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	target := newTrack
	if target == SameTrack {
		target = ref.TrackIndex
	}
	if target < 0 {
		return t, fmt.Errorf("%w: %d", ErrTrackNotFound, newTrack)
	}

	out := t.Clone()
	moved := ref.Clip.clone()
	moved.TimelineStart = math.Max(0, newStart)

	if target == ref.TrackIndex {
		out.Video[target][ref.ClipIndex] = moved
	} else {
		track := out.Video[ref.TrackIndex]
		out.Video[ref.TrackIndex] = append(track[:ref.ClipIndex], track[ref.ClipIndex+1:]...)
		out.ensureVideoTrack(target)
		out.Video[target] = append(out.Video[target], moved)
	}
	if ref.TrackIndex == PrimaryTrack || target == PrimaryTrack {
		out.syncAudio()
	}

	m.ClipMoved.Emit(ClipEvent{Clip: moved, TrackIndex: target, FromTrack: ref.TrackIndex})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, nil
}

// ClipUpdate lists the fields UpdateClip may change. Nil fields are left alone.
type ClipUpdate struct {
	Title           *string
	DisplayDuration *float64
	Transform       *Transform
	Color           *Color
	StretchMode     *StretchMode
}

func (u ClipUpdate) IsZero() bool {
	return u.Title == nil && u.DisplayDuration == nil && u.Transform == nil && u.Color == nil && u.StretchMode == nil
}

// Validate checks the fields that do not depend on the clip being updated.
func (u ClipUpdate) Validate() error {
	if u.DisplayDuration != nil && !(*u.DisplayDuration > 0) {
		return fmt.Errorf("%w: display duration %.3f", ErrInvalidInterval, *u.DisplayDuration)
	}
	return nil
}

func (m *Model) UpdateClip(t Tracks, clipID string, u ClipUpdate) (Tracks, error) {
	ref, ok := t.FindClipByID(clipID)
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if err := u.Validate(); err != nil {
		return t, err
	}

	out := t.Clone()
	c := &out.Video[ref.TrackIndex][ref.ClipIndex]
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.DisplayDuration != nil {
		c.DisplayDuration = *u.DisplayDuration
	}
	if u.Transform != nil {
		tr := *u.Transform
		c.Transform = &tr
	}
	if u.Color != nil {
		c.Color = *u.Color
	}
	if u.StretchMode != nil {
		c.StretchMode = *u.StretchMode
	}
	if ref.TrackIndex == PrimaryTrack {
		out.syncAudio()
	}

	m.ClipUpdated.Emit(ClipEvent{Clip: *c, TrackIndex: ref.TrackIndex, FromTrack: ref.TrackIndex})
	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, nil
}

// SplitClip cuts a clip at a timeline time strictly inside it. The source cut
// point follows the clip's stretch ratio, and both halves must keep at least
// the model's minimum split span of source. The earlier half keeps the color
// and the later half takes the next palette color. Both halves get new ids and
// replace the original in place.
func (m *Model) SplitClip(t Tracks, clipID string, splitTime float64) (Tracks, Clip, Clip, error) {
	ref, ok := t.FindClipByID(clipID)
	if !ok {
		return t, Clip{}, Clip{}, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}

	c := ref.Clip
	if splitTime <= c.TimelineStart || splitTime >= c.End() {
		return t, Clip{}, Clip{}, fmt.Errorf("%w: %.3f not in (%.3f, %.3f)", ErrSplitOutOfRange, splitTime, c.TimelineStart, c.End())
	}

	offset := splitTime - c.TimelineStart
	ratio := c.SourceDuration() / c.DisplayDuration
	sourceCut := c.SourceStart + offset*ratio

	if sourceCut-c.SourceStart < m.minSplit || c.SourceEnd-sourceCut < m.minSplit {
		return t, Clip{}, Clip{}, fmt.Errorf("%w: source cut at %.3f", ErrSplitTooCloseToEdge, sourceCut)
	}

	first := c.clone()
	first.ID = m.newID()
	first.SourceEnd = sourceCut
	first.DisplayDuration = offset

	second := c.clone()
	second.ID = m.newID()
	second.SourceStart = sourceCut
	second.TimelineStart = splitTime
	second.DisplayDuration = c.DisplayDuration - offset
	second.Color = m.palette.Next()

	out := t.Clone()
	track := out.Video[ref.TrackIndex]
	replaced := make(Track, 0, len(track)+1)
	replaced = append(replaced, track[:ref.ClipIndex]...)
	replaced = append(replaced, first, second)
	replaced = append(replaced, track[ref.ClipIndex+1:]...)
	out.Video[ref.TrackIndex] = replaced
	if ref.TrackIndex == PrimaryTrack {
		out.syncAudio()
	}

	m.Changed.Emit(ChangeEvent{Tracks: out})
	return out, first, second, nil
}
