// Package clock is the authoritative playback clock of an editing session.
//
// A Controller owns the current position, the content and timeline
// durations and the play state. It knows nothing about tracks or rendering;
// it only advances time on scheduler frames and reports what happened.
// All methods must be called from the goroutine that runs the scheduler's
// callbacks.
package clock

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/event"
)

const (
	MinPlaybackRate = 0.25
	MaxPlaybackRate = 4.0

	MinTimelineDuration = 30.0
	minHeadroom         = 10.0
	headroomRatio       = 0.2
)

type TimeUpdate struct {
	CurrentTime  float64
	PreviousTime float64
}

type DurationChange struct {
	ContentDuration  float64
	TimelineDuration float64
}

type PlayStateChange struct {
	IsPlaying bool
}

type Seek struct {
	CurrentTime  float64
	PreviousTime float64
}

type PlaybackEnd struct {
	CurrentTime float64
}

// ContentSource reports the natural end of composed playback.
type ContentSource interface {
	ContentDuration() float64
}

type Controller struct {
	sched  Scheduler
	logger *slog.Logger

	currentTime      float64
	contentDuration  float64
	timelineDuration float64
	playbackRate     float64
	playing          bool
	lastFrame        time.Time
	cancelFrame      func()

	timeUpdate      *event.Feed[TimeUpdate]
	durationChange  *event.Feed[DurationChange]
	playStateChange *event.Feed[PlayStateChange]
	seek            *event.Feed[Seek]
	playbackEnd     *event.Feed[PlaybackEnd]
}

func New(sched Scheduler, logger *slog.Logger) *Controller {
	return &Controller{
		sched:            sched,
		logger:           logger,
		timelineDuration: MinTimelineDuration,
		playbackRate:     1,
		timeUpdate:       event.NewFeed[TimeUpdate]("time_update", logger),
		durationChange:   event.NewFeed[DurationChange]("duration_change", logger),
		playStateChange:  event.NewFeed[PlayStateChange]("play_state_change", logger),
		seek:             event.NewFeed[Seek]("seek", logger),
		playbackEnd:      event.NewFeed[PlaybackEnd]("playback_end", logger),
	}
}

func (c *Controller) TimeUpdates() *event.Feed[TimeUpdate]           { return c.timeUpdate }
func (c *Controller) DurationChanges() *event.Feed[DurationChange]   { return c.durationChange }
func (c *Controller) PlayStateChanges() *event.Feed[PlayStateChange] { return c.playStateChange }
func (c *Controller) Seeks() *event.Feed[Seek]                       { return c.seek }
func (c *Controller) PlaybackEnds() *event.Feed[PlaybackEnd]         { return c.playbackEnd }

func (c *Controller) CurrentTime() float64      { return c.currentTime }
func (c *Controller) ContentDuration() float64  { return c.contentDuration }
func (c *Controller) TimelineDuration() float64 { return c.timelineDuration }
func (c *Controller) IsPlaying() bool           { return c.playing }
func (c *Controller) PlaybackRate() float64     { return c.playbackRate }

// SetPlaybackRate clamps rate to [MinPlaybackRate, MaxPlaybackRate].
func (c *Controller) SetPlaybackRate(rate float64) {
	c.playbackRate = math.Max(MinPlaybackRate, math.Min(MaxPlaybackRate, rate))
}

// Play starts the frame loop. Playing from the end restarts at 0. Calling
// Play while already playing does nothing.
func (c *Controller) Play() {
	if c.playing {
		return
	}
	if c.currentTime >= c.contentDuration {
		c.currentTime = 0
	}
	c.playing = true
	c.lastFrame = c.sched.Now()
	c.requestFrame()
	c.playStateChange.Emit(PlayStateChange{IsPlaying: true})
}

func (c *Controller) Pause() {
	if !c.playing {
		return
	}
	c.playing = false
	c.stopFrames()
	c.playStateChange.Emit(PlayStateChange{IsPlaying: false})
}

func (c *Controller) Stop() {
	c.Pause()
	c.Seek(0)
}

func (c *Controller) TogglePlay() {
	if c.playing {
		c.Pause()
	} else {
		c.Play()
	}
}

// Seek clamps t to [0, ContentDuration] and emits a seek followed by a time
// update. Seeking does not change the play state.
func (c *Controller) Seek(t float64) {
	prev := c.currentTime
	c.currentTime = c.clamp(t)
	if c.playing {
		c.lastFrame = c.sched.Now()
	}
	c.seek.Emit(Seek{CurrentTime: c.currentTime, PreviousTime: prev})
	c.timeUpdate.Emit(TimeUpdate{CurrentTime: c.currentTime, PreviousTime: prev})
}

func (c *Controller) SeekBy(delta float64) {
	c.Seek(c.currentTime + delta)
}

// SeekToPercent seeks to a fraction (0..1) of the content duration.
func (c *Controller) SeekToPercent(p float64) {
	c.Seek(p * c.contentDuration)
}

// RecalculateDuration recomputes both durations from src. The timeline keeps
// max(10s, 20%) of headroom past the content end and never shrinks below
// MinTimelineDuration. The current time is pulled back if the content got
// shorter.
func (c *Controller) RecalculateDuration(src ContentSource) DurationChange {
	content := math.Max(0, src.ContentDuration())
	timeline := math.Max(content+math.Max(minHeadroom, content*headroomRatio), MinTimelineDuration)

	changed := content != c.contentDuration || timeline != c.timelineDuration
	c.contentDuration = content
	c.timelineDuration = timeline

	if c.currentTime > content {
		prev := c.currentTime
		c.currentTime = content
		c.timeUpdate.Emit(TimeUpdate{CurrentTime: c.currentTime, PreviousTime: prev})
	}

	d := DurationChange{ContentDuration: content, TimelineDuration: timeline}
	if changed {
		c.durationChange.Emit(d)
	}
	return d
}

// Progress is CurrentTime as a fraction of ContentDuration, 0 when empty.
func (c *Controller) Progress() float64 {
	if c.contentDuration <= 0 {
		return 0
	}
	return c.currentTime / c.contentDuration
}

// Close cancels any pending frame without emitting events.
func (c *Controller) Close() {
	c.playing = false
	c.stopFrames()
}

func (c *Controller) clamp(t float64) float64 {
	return math.Max(0, math.Min(t, c.contentDuration))
}

func (c *Controller) requestFrame() {
	if c.cancelFrame != nil {
		return
	}
	c.cancelFrame = c.sched.Request(c.tick)
}

func (c *Controller) stopFrames() {
	if c.cancelFrame != nil {
		c.cancelFrame()
		c.cancelFrame = nil
	}
}

func (c *Controller) tick(now time.Time) {
	c.cancelFrame = nil
	if !c.playing {
		return
	}

	elapsed := now.Sub(c.lastFrame)
	if elapsed < 0 {
		elapsed = 0
	}
	c.lastFrame = now

	prev := c.currentTime
	next := prev + elapsed.Seconds()*c.playbackRate

	if next >= c.contentDuration {
		c.currentTime = c.contentDuration
		c.playing = false
		c.timeUpdate.Emit(TimeUpdate{CurrentTime: c.currentTime, PreviousTime: prev})
		c.playbackEnd.Emit(PlaybackEnd{CurrentTime: c.currentTime})
		c.playStateChange.Emit(PlayStateChange{IsPlaying: false})
		return
	}

	c.currentTime = next
	c.timeUpdate.Emit(TimeUpdate{CurrentTime: c.currentTime, PreviousTime: prev})
	if c.playing {
		c.requestFrame()
	}
}

// FormatTime renders seconds as m:ss, or h:mm:ss from one hour up.
// Zero and negative values render as 00:00.
func FormatTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "00:00"
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
