// Package compositor decides, on every clock tick and seek, which source each
// track's surface should show and at which source time.
//
// All exported methods except SeekTo and Wait must be called on the session
// loop. Source switches run in background goroutines and report back to the
// loop, so a tick never waits on media.
package compositor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/event"
	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var (
	ErrLoadTimeout = errors.New("media load timed out")
	ErrDecode      = errors.New("media decode failed")
	ErrClosed      = errors.New("compositor closed")
)

const (
	DefaultDriftTolerance       = 0.3
	DefaultMainSwitchTimeout    = 2 * time.Second
	DefaultOverlaySwitchTimeout = 3 * time.Second
)

// State is the read side of an editing session plus the transport controls
// SeekTo needs.
type State interface {
	Tracks() timeline.Tracks
	CurrentTime() float64
	IsPlaying() bool
	PlaybackRate() float64
	Play()
	Pause()
	Seek(t float64)
}

// Executor runs closures on the session loop.
type Executor interface {
	Do(fn func()) error
	Post(fn func()) bool
}

// SourceCache looks up resolved media without blocking. A layer holds a pin
// on the entry loaded into its surface.
type SourceCache interface {
	Get(ref string) (*media.Entry, bool)
	Acquire(ref string) (*media.Entry, bool)
	Unpin(ref string)
}

type Config struct {
	// DriftTolerance is how far, in seconds, a surface may run from the
	// mapped source time before it is re-seeked.
	DriftTolerance       float64
	MainSwitchTimeout    time.Duration
	OverlaySwitchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DriftTolerance:       DefaultDriftTolerance,
		MainSwitchTimeout:    DefaultMainSwitchTimeout,
		OverlaySwitchTimeout: DefaultOverlaySwitchTimeout,
	}
}

type layer struct {
	index   int
	surface Surface
	logger  *slog.Logger

	loadedRef   string
	clipID      string
	gap         bool
	missing     bool
	failed      bool
	visible     bool
	playing     bool
	transform   timeline.Transform
	transformed bool
	rate        float64

	switching bool
	cancel    context.CancelFunc
	done      chan struct{}

	retired     atomic.Bool
	releaseOnce sync.Once
}

type Compositor struct {
	state      State
	exec       Executor
	cache      SourceCache
	newSurface SurfaceFactory
	cfg        Config
	prefetch   func(ref string)
	logger     *slog.Logger

	layers []*layer
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Compositor)

func WithConfig(cfg Config) Option {
	return func(c *Compositor) {
		def := DefaultConfig()
		if cfg.DriftTolerance <= 0 {
			cfg.DriftTolerance = def.DriftTolerance
		}
		if cfg.MainSwitchTimeout <= 0 {
			cfg.MainSwitchTimeout = def.MainSwitchTimeout
		}
		if cfg.OverlaySwitchTimeout <= 0 {
			cfg.OverlaySwitchTimeout = def.OverlaySwitchTimeout
		}
		c.cfg = cfg
	}
}

// WithPrefetch sets a hook called with refs that a track needs but the cache
// does not hold yet.
func WithPrefetch(fn func(ref string)) Option {
	return func(c *Compositor) { c.prefetch = fn }
}

func New(state State, exec Executor, cache SourceCache, newSurface SurfaceFactory, logger *slog.Logger, opts ...Option) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		state:      state,
		exec:       exec,
		cache:      cache,
		newSurface: newSurface,
		cfg:        DefaultConfig(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind re-renders on every time update, play state change and tracks change.
// The returned func unsubscribes.
func (c *Compositor) Bind(clk *clock.Controller, tracksChanged *event.Feed[timeline.Tracks]) func() {
	offs := []func(){
		clk.TimeUpdates().Subscribe(func(clock.TimeUpdate) { c.Render() }),
		clk.PlayStateChanges().Subscribe(func(clock.PlayStateChange) { c.Render() }),
		tracksChanged.Subscribe(func(timeline.Tracks) { c.Render() }),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Render brings every track's surface in line with the current time.
func (c *Compositor) Render() {
	if c.closed {
		return
	}
	tracks := c.state.Tracks()
	now := c.state.CurrentTime()
	playing := c.state.IsPlaying()

	for i := range tracks.Video {
		clip, ok := tracks.ClipAtTime(i, now)
		c.renderLayer(c.layer(i), clip, ok, now, playing)
	}
	c.retireFrom(len(tracks.Video))
}

func (c *Compositor) layer(index int) *layer {
	for len(c.layers) <= index {
		c.layers = append(c.layers, &layer{
			index:   len(c.layers),
			surface: c.newSurface(len(c.layers)),
			logger:  logging.WithTrack(c.logger, len(c.layers)),
		})
	}
	return c.layers[index]
}

func (c *Compositor) renderLayer(l *layer, clip timeline.Clip, active bool, now float64, playing bool) {
	if l.switching {
		return
	}
	if !active {
		c.showGap(l)
		return
	}

	switch {
	case clip.ID != l.clipID:
		l.clipID = clip.ID
		l.gap, l.failed, l.missing = false, false, false
		if clip.SourceRef != l.loadedRef {
			c.switchSource(l, clip)
			return
		}
		l.surface.Seek(clip.SourceTimeAt(now))
	case l.failed:
		return
	case l.missing:
		if _, ok := c.cache.Get(clip.SourceRef); ok {
			c.switchSource(l, clip)
		}
		return
	default:
		want := clip.SourceTimeAt(now)
		if drift := math.Abs(l.surface.Position() - want); drift > c.cfg.DriftTolerance {
			l.logger.Debug("correcting drift", "clip_id", clip.ID, "drift", drift)
			l.surface.Seek(want)
		}
	}
	c.present(l, clip, playing)
}

func (c *Compositor) present(l *layer, clip timeline.Clip, playing bool) {
	if !l.visible {
		l.surface.SetVisible(true)
		l.visible = true
	}
	if l.index != timeline.PrimaryTrack {
		if tf := clip.TransformOrDefault(); !l.transformed || tf != l.transform {
			l.surface.SetTransform(tf)
			l.transform = tf
			l.transformed = true
		}
	}
	if rate := c.surfaceRate(clip); rate != l.rate {
		l.surface.SetRate(rate)
		l.rate = rate
	}
	switch {
	case playing && !l.playing:
		l.surface.Play()
		l.playing = true
	case !playing && l.playing:
		l.surface.Pause()
		l.playing = false
	}
}

// surfaceRate is how fast clip's source has to play to keep up with the
// playhead. Looping clips play at the clock rate and wrap by seeking.
func (c *Compositor) surfaceRate(clip timeline.Clip) float64 {
	rate := c.state.PlaybackRate()
	if !clip.Looping() && clip.DisplayDuration > 0 {
		rate *= clip.SourceDuration() / clip.DisplayDuration
	}
	return rate
}

func (c *Compositor) hide(l *layer) {
	if l.playing {
		l.surface.Pause()
		l.playing = false
	}
	if l.visible {
		l.surface.SetVisible(false)
		l.visible = false
	}
}

func (c *Compositor) showGap(l *layer) {
	if l.gap {
		return
	}
	c.hide(l)
	l.clipID = ""
	l.gap = true
	l.failed = false
	l.missing = false
}

// switchSource loads clip's source into the layer's surface in the
// background. The layer is left alone by renders until the switch reports
// back.
func (c *Compositor) switchSource(l *layer, clip timeline.Clip) {
	entry, ok := c.cache.Acquire(clip.SourceRef)
	if !ok {
		l.missing = true
		c.hide(l)
		l.logger.Warn("source not cached, showing gap",
			"source_ref", clip.SourceRef,
			"clip_id", clip.ID,
			"error", media.ErrSourceUnavailable,
		)
		if c.prefetch != nil {
			c.prefetch(clip.SourceRef)
		}
		return
	}

	c.hide(l)
	c.unpin(l)
	l.missing = false
	l.failed = false
	l.switching = true
	l.loadedRef = clip.SourceRef
	l.rate = 0

	timeout := c.cfg.OverlaySwitchTimeout
	if l.index == timeline.PrimaryTrack {
		timeout = c.cfg.MainSwitchTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		err := l.surface.SetSource(entry)
		if err == nil {
			err = l.surface.WaitReady(ctx)
		}

		if l.retired.Load() {
			c.release(l)
		}
		posted := c.exec.Post(func() {
			c.finishSwitch(l, clip, err)
			close(done)
		})
		if !posted {
			c.release(l)
			close(done)
		}
	}()
}

func (c *Compositor) finishSwitch(l *layer, clip timeline.Clip, err error) {
	l.switching = false
	l.cancel = nil
	l.done = nil
	if c.closed || l.retired.Load() {
		c.release(l)
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		l.logger.Warn("source switch not ready in time, continuing",
			"source_ref", clip.SourceRef,
			"clip_id", clip.ID,
			"error", ErrLoadTimeout,
		)
	default:
		l.failed = true
		c.unpin(l)
		c.hide(l)
		l.logger.Warn("source switch failed, showing gap",
			"source_ref", clip.SourceRef,
			"clip_id", clip.ID,
			"error", err,
		)
		return
	}

	now := c.state.CurrentTime()
	current, ok := c.state.Tracks().ClipAtTime(l.index, now)
	if !ok || current.SourceRef != l.loadedRef {
		l.clipID = ""
		c.renderLayer(l, current, ok, now, c.state.IsPlaying())
		return
	}
	l.clipID = current.ID
	l.surface.Seek(current.SourceTimeAt(now))
	c.present(l, current, c.state.IsPlaying())
}

func (c *Compositor) retireFrom(n int) {
	if n >= len(c.layers) {
		return
	}
	for _, l := range c.layers[n:] {
		c.retire(l)
	}
	c.layers = c.layers[:n]
}

func (c *Compositor) retire(l *layer) {
	l.retired.Store(true)
	if l.switching {
		if l.cancel != nil {
			l.cancel()
		}
		return
	}
	c.release(l)
}

func (c *Compositor) release(l *layer) {
	l.releaseOnce.Do(func() {
		if err := l.surface.Close(); err != nil {
			l.logger.Warn("surface close failed", "error", err)
		}
		c.unpin(l)
	})
}

func (c *Compositor) unpin(l *layer) {
	if l.loadedRef != "" {
		c.cache.Unpin(l.loadedRef)
		l.loadedRef = ""
	}
}

// SeekTo pauses playback, moves the playhead to t, waits for every source
// switch that move needs and resumes playback if it was running. It must not
// be called from the session loop.
func (c *Compositor) SeekTo(ctx context.Context, t float64) error {
	var (
		wasPlaying bool
		closed     bool
		pending    []chan struct{}
	)
	err := c.exec.Do(func() {
		if c.closed {
			closed = true
			return
		}
		wasPlaying = c.state.IsPlaying()
		c.state.Pause()
		c.state.Seek(t)
		c.Render()
		for _, l := range c.layers {
			if l.switching && l.done != nil {
				pending = append(pending, l.done)
			}
		}
	})
	if err != nil {
		return err
	}
	if closed {
		return ErrClosed
	}

	var waitErr error
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			waitErr = ctx.Err()
		}
		if waitErr != nil {
			break
		}
	}

	err = c.exec.Do(func() {
		if c.closed {
			return
		}
		c.Render()
		if wasPlaying {
			c.state.Play()
		}
	})
	if waitErr != nil {
		return waitErr
	}
	return err
}

// LayerState describes one track's surface for clients that draw the frame.
type LayerState struct {
	Track     int                 `json:"track"`
	ClipID    string              `json:"clip_id,omitempty"`
	SourceRef string              `json:"source_ref,omitempty"`
	Position  float64             `json:"position"`
	Visible   bool                `json:"visible"`
	Playing   bool                `json:"playing"`
	Gap       bool                `json:"gap"`
	Switching bool                `json:"switching"`
	Missing   bool                `json:"missing"`
	Failed    bool                `json:"failed"`
	Transform *timeline.Transform `json:"transform,omitempty"`
}

func (c *Compositor) Frame() []LayerState {
	out := make([]LayerState, 0, len(c.layers))
	for _, l := range c.layers {
		s := LayerState{
			Track:     l.index,
			ClipID:    l.clipID,
			SourceRef: l.loadedRef,
			Visible:   l.visible,
			Playing:   l.playing,
			Gap:       l.gap,
			Switching: l.switching,
			Missing:   l.missing,
			Failed:    l.failed,
		}
		if !l.switching {
			s.Position = l.surface.Position()
		}
		if l.transformed {
			tf := l.transform
			s.Transform = &tf
		}
		out = append(out, s)
	}
	return out
}

// Switching counts source switches still in flight.
func (c *Compositor) Switching() int {
	n := 0
	for _, l := range c.layers {
		if l.switching {
			n++
		}
	}
	return n
}

// Close releases every surface. Switches still in flight are cancelled and
// release their surface when they finish. Close is idempotent.
func (c *Compositor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.retireFrom(0)
}

// Wait blocks until every background switch has returned. Call it after
// Close and before closing the loop, then drain the loop once.
func (c *Compositor) Wait() {
	c.wg.Wait()
}
