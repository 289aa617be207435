// Package session hosts editing sessions. Each session owns a loop, an editor
// core with its clock, a compositor and a media cache; all of the session's
// edit state is touched only from its loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/compositor"
	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/loop"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var ErrClosed = errors.New("session closed")

type Options struct {
	HistoryLimit    int
	MinSplitSeconds float64
	FrameInterval   time.Duration
	CacheMaxBytes   int64
	Compositor      compositor.Config

	// Scheduler builds the frame scheduler from the loop's Post. Defaults to
	// a clock.FrameScheduler.
	Scheduler func(post func(func()) bool) clock.Scheduler
	// NewSurface defaults to compositor.MirrorSurface.
	NewSurface func(trackIndex int, now func() time.Time) compositor.Surface
}

type Session struct {
	ID        string
	CreatedAt time.Time

	loop       *loop.Loop
	core       *editor.Core
	comp       *compositor.Compositor
	cache      *media.Cache
	sched      clock.Scheduler
	prefetcher *media.Prefetcher
	logger     *slog.Logger

	mu    sync.Mutex
	title string

	unsubscribe []func()
	closeOnce   sync.Once
	closeErr    error
}

// New starts a session. prefetcher may be nil.
func New(id, title string, resolver media.Resolver, prefetcher *media.Prefetcher, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithSessionID(logger, id)

	s := &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		title:      title,
		prefetcher: prefetcher,
		logger:     logger,
	}

	s.loop = loop.New(logger)
	if opts.Scheduler != nil {
		s.sched = opts.Scheduler(s.loop.Post)
	} else {
		s.sched = clock.NewFrameScheduler(opts.FrameInterval, s.loop.Post)
	}
	s.cache = media.NewCache(resolver, opts.CacheMaxBytes, logger)

	clk := clock.New(s.sched, logger)
	model := timeline.NewModel(logger, timeline.WithMinSplit(opts.MinSplitSeconds))
	s.core = editor.NewCore(clk, logger, editor.WithHistoryLimit(opts.HistoryLimit), editor.WithModel(model))

	newSurface := opts.NewSurface
	if newSurface == nil {
		newSurface = func(_ int, now func() time.Time) compositor.Surface {
			return compositor.NewMirrorSurface(now)
		}
	}
	s.comp = compositor.New(s.core, s.loop, s.cache,
		func(i int) compositor.Surface { return newSurface(i, s.sched.Now) },
		logging.WithComponent(logger, "compositor"),
		compositor.WithConfig(opts.Compositor),
		compositor.WithPrefetch(func(ref string) { s.prefetch(ref) }),
	)

	s.loop.Do(func() {
		s.unsubscribe = append(s.unsubscribe,
			s.comp.Bind(clk, s.core.TracksChanged()),
			s.core.Model().ClipAdded.Subscribe(func(e timeline.ClipEvent) { s.prefetch(e.Clip.SourceRef) }),
		)
		s.comp.Render()
	})
	return s
}

func (s *Session) prefetch(refs ...string) {
	if s.prefetcher == nil || len(refs) == 0 {
		return
	}
	s.prefetcher.Enqueue(s.cache, refs...)
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

// Do runs fn with the editor core on the session loop.
func (s *Session) Do(fn func(c *editor.Core)) error {
	if err := s.loop.Do(func() { fn(s.core) }); err != nil {
		if errors.Is(err, loop.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	CreatedAt        time.Time       `json:"created_at"`
	Tracks           timeline.Tracks `json:"tracks"`
	CurrentTime      float64         `json:"current_time"`
	ContentDuration  float64         `json:"content_duration"`
	TimelineDuration float64         `json:"timeline_duration"`
	IsPlaying        bool            `json:"is_playing"`
	PlaybackRate     float64         `json:"playback_rate"`
	Progress         float64         `json:"progress"`
	TimeLabel        string          `json:"time_label"`
	Selection        []string        `json:"selection"`
	SelectedClipID   string          `json:"selected_clip_id,omitempty"`
	CanUndo          bool            `json:"can_undo"`
	CanRedo          bool            `json:"can_redo"`
}

func (s *Session) Snapshot() (Snapshot, error) {
	snap := Snapshot{ID: s.ID, Title: s.Title(), CreatedAt: s.CreatedAt}
	err := s.Do(func(c *editor.Core) {
		snap.Tracks = c.Tracks().Clone()
		snap.CurrentTime = c.CurrentTime()
		snap.ContentDuration = c.ContentDuration()
		snap.TimelineDuration = c.TimelineDuration()
		snap.IsPlaying = c.IsPlaying()
		snap.PlaybackRate = c.Clock().PlaybackRate()
		snap.Progress = c.Clock().Progress()
		snap.TimeLabel = clock.FormatTime(c.CurrentTime())
		snap.Selection = c.SelectedClipIDs()
		snap.SelectedClipID = c.SelectedClipID()
		snap.CanUndo = c.CanUndo()
		snap.CanRedo = c.CanRedo()
	})
	return snap, err
}

// Frame returns the compositor's per-track state.
func (s *Session) Frame() ([]compositor.LayerState, error) {
	var frame []compositor.LayerState
	err := s.Do(func(*editor.Core) { frame = s.comp.Frame() })
	return frame, err
}

// SeekTo moves the playhead and waits until every track has its source.
func (s *Session) SeekTo(ctx context.Context, t float64) error {
	err := s.comp.SeekTo(ctx, t)
	switch {
	case errors.Is(err, loop.ErrClosed), errors.Is(err, compositor.ErrClosed):
		return ErrClosed
	}
	return err
}

// Load replaces the session content, for example with a saved draft, and
// queues its sources for prefetch.
func (s *Session) Load(tracks timeline.Tracks, currentTime float64) error {
	return s.Do(func(c *editor.Core) {
		c.Load(tracks, currentTime)
		s.prefetch(SourceRefs(c.Tracks())...)
	})
}

// Warm resolves every source the session references, at most limit at a time.
func (s *Session) Warm(ctx context.Context, limit int) error {
	var refs []string
	if err := s.Do(func(c *editor.Core) { refs = SourceRefs(c.Tracks()) }); err != nil {
		return err
	}
	return media.Warm(ctx, s.cache, refs, limit)
}

func (s *Session) Cache() *media.Cache { return s.cache }

// Close stops playback, releases every surface and media buffer, and stops
// the loop. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.loop.Do(func() {
			for _, off := range s.unsubscribe {
				off()
			}
			s.core.Clock().Close()
			s.comp.Close()
		})
		s.comp.Wait()
		s.loop.Do(func() {})
		s.loop.Close()

		if err := s.cache.Close(); err != nil {
			s.closeErr = fmt.Errorf("release media: %w", err)
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}

// SourceRefs lists the distinct source refs used by video clips, in track
// order.
func SourceRefs(t timeline.Tracks) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, ref := range t.AllClips() {
		if !seen[ref.Clip.SourceRef] {
			seen[ref.Clip.SourceRef] = true
			refs = append(refs, ref.Clip.SourceRef)
		}
	}
	return refs
}
