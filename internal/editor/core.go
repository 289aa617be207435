// Package editor combines the track model and the playback clock into
// history-tracked edit operations with clip selection.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/event"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

// Core is one editing session's state. It is not safe for concurrent use;
// callers serialize access, usually through the session loop.
type Core struct {
	model   *timeline.Model
	clock   *clock.Controller
	history *History
	logger  *slog.Logger

	tracks    timeline.Tracks
	selection []string

	tracksChanged *event.Feed[timeline.Tracks]
}

type Option func(*Core)

func WithHistoryLimit(n int) Option {
	return func(c *Core) { c.history = NewHistory(n) }
}

func WithModel(m *timeline.Model) Option {
	return func(c *Core) { c.model = m }
}

func NewCore(clk *clock.Controller, logger *slog.Logger, opts ...Option) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Core{
		clock:         clk,
		history:       NewHistory(DefaultHistoryLimit),
		logger:        logger,
		tracks:        timeline.CreateEmptyTracks(),
		tracksChanged: event.NewFeed[timeline.Tracks]("editor_tracks_changed", logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == nil {
		c.model = timeline.NewModel(logger)
	}
	c.clock.RecalculateDuration(c.tracks)
	return c
}

// Tracks returns the live tracks. Edits always install a fresh copy, so the
// returned value stays valid, but it must not be modified.
func (c *Core) Tracks() timeline.Tracks { return c.tracks }

func (c *Core) Model() *timeline.Model   { return c.model }
func (c *Core) Clock() *clock.Controller { return c.clock }

// TracksChanged fires after every committed edit, undo, redo or load, once
// durations and selection are up to date.
func (c *Core) TracksChanged() *event.Feed[timeline.Tracks] { return c.tracksChanged }

func (c *Core) snapshot() Snapshot {
	return Snapshot{Tracks: c.tracks, Selection: c.selection}
}

// commit installs tracks after a successful edit whose pre-edit state is before.
func (c *Core) commit(before Snapshot, tracks timeline.Tracks) {
	c.history.Push(before)
	c.install(tracks)
}

func (c *Core) install(tracks timeline.Tracks) {
	c.tracks = tracks
	c.clock.RecalculateDuration(c.tracks)
	c.pruneSelection()
	c.tracksChanged.Emit(c.tracks)
}

type AddOptions struct {
	timeline.ClipOptions
	// TimelineStart overrides the playhead placement of overlay clips.
	// It is ignored on the primary track.
	TimelineStart *float64
}

// AddClip places a new clip. Clips on the primary track are appended after
// its last clip; overlay clips land at the playhead unless opts says otherwise.
func (c *Core) AddClip(sourceRef string, sourceStart, sourceEnd float64, trackIndex int, opts AddOptions) (timeline.Clip, error) {
	// Checked before CreateClip, which takes the next palette colour.
	if trackIndex < 0 {
		return timeline.Clip{}, editError("add clip", fmt.Errorf("%w: %d", timeline.ErrTrackNotFound, trackIndex))
	}

	var at float64
	if trackIndex == timeline.PrimaryTrack {
		at = c.tracks.TrackEnd(timeline.PrimaryTrack)
	} else if opts.TimelineStart != nil {
		at = *opts.TimelineStart
	} else {
		at = c.clock.CurrentTime()
	}

	clip, err := c.model.CreateClip(sourceRef, sourceStart, sourceEnd, at, opts.ClipOptions)
	if err != nil {
		return timeline.Clip{}, editError("add clip", err)
	}

	before := c.snapshot()
	tracks, err := c.model.AddClip(c.tracks, trackIndex, clip)
	if err != nil {
		return timeline.Clip{}, editError("add clip", err)
	}
	c.commit(before, tracks)

	c.logger.Debug("clip added", "clip_id", clip.ID, "track", trackIndex, "timeline_start", clip.TimelineStart)
	return clip, nil
}

func (c *Core) RemoveClip(clipID string) (timeline.Clip, error) {
	before := c.snapshot()
	tracks, removed, err := c.model.RemoveClip(c.tracks, clipID)
	if err != nil {
		return timeline.Clip{}, editError("remove clip", err)
	}
	c.commit(before, tracks)
	return removed, nil
}

// RemoveSelectedClips deletes every selected clip as one undoable edit and
// clears the selection.
func (c *Core) RemoveSelectedClips() (int, error) {
	if len(c.selection) == 0 {
		return 0, editError("remove selected clips", ErrNothingSelected)
	}

	before := c.snapshot()
	tracks := c.tracks
	deleted := 0
	for _, id := range c.selection {
		next, _, err := c.model.RemoveClip(tracks, id)
		if err != nil {
			continue
		}
		tracks = next
		deleted++
	}

	c.selection = nil
	if deleted == 0 {
		return 0, editError("remove selected clips", ErrNothingSelected)
	}
	c.commit(before, tracks)
	return deleted, nil
}

// MoveClip moves a clip to newStart, and to newTrack unless it is
// timeline.SameTrack.
func (c *Core) MoveClip(clipID string, newStart float64, newTrack int) error {
	before := c.snapshot()
	tracks, err := c.model.MoveClip(c.tracks, clipID, newStart, newTrack)
	if err != nil {
		return editError("move clip", err)
	}
	c.commit(before, tracks)
	return nil
}

func (c *Core) UpdateClip(clipID string, u timeline.ClipUpdate) error {
	before := c.snapshot()
	tracks, err := c.model.UpdateClip(c.tracks, clipID, u)
	if err != nil {
		return editError("update clip", err)
	}
	c.commit(before, tracks)
	return nil
}

// ClipMove is the placement half of EditClip.
type ClipMove struct {
	Start float64
	// Track is the destination track, or timeline.SameTrack.
	Track int
}

// EditClip applies an optional move and an update to one clip as a single
// undoable edit. Nothing is applied unless both succeed.
func (c *Core) EditClip(clipID string, move *ClipMove, u timeline.ClipUpdate) error {
	if err := u.Validate(); err != nil {
		return editError("edit clip", err)
	}

	before := c.snapshot()
	tracks := c.tracks
	var err error
	if move != nil {
		if tracks, err = c.model.MoveClip(tracks, clipID, move.Start, move.Track); err != nil {
			return editError("move clip", err)
		}
	}
	if !u.IsZero() {
		if tracks, err = c.model.UpdateClip(tracks, clipID, u); err != nil {
			return editError("update clip", err)
		}
	}
	c.commit(before, tracks)
	return nil
}

// CutAtPlayhead splits the selected clip if the playhead is inside it,
// otherwise the first clip under the playhead in track order.
func (c *Core) CutAtPlayhead() (timeline.Clip, timeline.Clip, error) {
	now := c.clock.CurrentTime()

	var target *timeline.Clip
	if id := c.SelectedClipID(); id != "" {
		if ref, ok := c.tracks.FindClipByID(id); ok && ref.Clip.Contains(now) {
			target = &ref.Clip
		}
	}
	if target == nil {
		if active := c.tracks.ActiveClipsAtTime(now); len(active) > 0 {
			target = &active[0].Clip
		}
	}
	if target == nil {
		return timeline.Clip{}, timeline.Clip{}, editError("cut", ErrNoClipAtPlayhead)
	}

	before := c.snapshot()
	tracks, first, second, err := c.model.SplitClip(c.tracks, target.ID, now)
	if err != nil {
		return timeline.Clip{}, timeline.Clip{}, editError("cut", err)
	}
	c.commit(before, tracks)
	return first, second, nil
}

func (c *Core) AddVideoTrack() int {
	before := c.snapshot()
	tracks, index := c.model.AddVideoTrack(c.tracks)
	c.commit(before, tracks)
	return index
}

func (c *Core) RemoveVideoTrack(index int) error {
	before := c.snapshot()
	tracks, err := c.model.RemoveVideoTrack(c.tracks, index)
	if err != nil {
		return editError("remove track", err)
	}
	c.commit(before, tracks)
	return nil
}

// SelectClip replaces the selection with clipID, or with add toggles its
// membership. An empty id clears a replace-selection.
func (c *Core) SelectClip(clipID string, add bool) {
	if !add {
		if clipID == "" {
			c.selection = nil
		} else {
			c.selection = []string{clipID}
		}
		return
	}
	for i, id := range c.selection {
		if id == clipID {
			c.selection = append(c.selection[:i:i], c.selection[i+1:]...)
			return
		}
	}
	c.selection = append(c.selection, clipID)
}

func (c *Core) ClearSelection() {
	c.selection = nil
}

// SelectedClipIDs returns the selection, oldest first.
func (c *Core) SelectedClipIDs() []string {
	return append([]string(nil), c.selection...)
}

// SelectedClipID is the most recently selected clip, or "".
func (c *Core) SelectedClipID() string {
	if len(c.selection) == 0 {
		return ""
	}
	return c.selection[len(c.selection)-1]
}

// pruneSelection drops ids of clips that no longer exist.
func (c *Core) pruneSelection() {
	kept := c.selection[:0:0]
	for _, id := range c.selection {
		if _, ok := c.tracks.FindClipByID(id); ok {
			kept = append(kept, id)
		}
	}
	c.selection = kept
}

func (c *Core) Undo() bool {
	s, ok := c.history.Undo(c.snapshot())
	if !ok {
		return false
	}
	c.selection = s.Selection
	c.install(s.Tracks)
	return true
}

func (c *Core) Redo() bool {
	s, ok := c.history.Redo(c.snapshot())
	if !ok {
		return false
	}
	c.selection = s.Selection
	c.install(s.Tracks)
	return true
}

func (c *Core) CanUndo() bool { return c.history.CanUndo() }
func (c *Core) CanRedo() bool { return c.history.CanRedo() }

// Load replaces the whole edit state, for example from a saved draft. History
// is cleared and the playhead is restored within the new content.
func (c *Core) Load(tracks timeline.Tracks, currentTime float64) {
	c.clock.Pause()
	c.history.Clear()
	c.selection = nil
	if len(tracks.Video) == 0 {
		tracks.Video = []timeline.Track{{}}
	}
	if len(tracks.Audio) == 0 {
		tracks.Audio = []timeline.Track{append(timeline.Track(nil), tracks.Video[timeline.PrimaryTrack]...)}
	}
	c.install(tracks.Clone())
	c.clock.Seek(currentTime)
}

// Reset empties the session.
func (c *Core) Reset() {
	c.Load(timeline.CreateEmptyTracks(), 0)
}

func (c *Core) Play()                   { c.clock.Play() }
func (c *Core) Pause()                  { c.clock.Pause() }
func (c *Core) Stop()                   { c.clock.Stop() }
func (c *Core) TogglePlay()             { c.clock.TogglePlay() }
func (c *Core) Seek(t float64)          { c.clock.Seek(t) }
func (c *Core) SeekBy(delta float64)    { c.clock.SeekBy(delta) }
func (c *Core) SeekToPercent(p float64) { c.clock.SeekToPercent(p) }

func (c *Core) CurrentTime() float64      { return c.clock.CurrentTime() }
func (c *Core) ContentDuration() float64  { return c.clock.ContentDuration() }
func (c *Core) TimelineDuration() float64 { return c.clock.TimelineDuration() }
func (c *Core) IsPlaying() bool           { return c.clock.IsPlaying() }
func (c *Core) PlaybackRate() float64     { return c.clock.PlaybackRate() }

// ActiveClips returns the clip under the playhead on each track.
func (c *Core) ActiveClips() []timeline.ActiveClip {
	return c.tracks.ActiveClipsAtTime(c.clock.CurrentTime())
}

func (c *Core) CurrentClip(trackIndex int) (timeline.Clip, bool) {
	return c.tracks.ClipAtTime(trackIndex, c.clock.CurrentTime())
}

func (c *Core) FindClipByID(id string) (timeline.ClipRef, bool) {
	return c.tracks.FindClipByID(id)
}

func (c *Core) SnapPoints(excludeClipID string) []timeline.SnapPoint {
	return c.tracks.SnapPoints(excludeClipID)
}
