package clock

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedContent float64

func (f fixedContent) ContentDuration() float64 { return float64(f) }

func newTestController(content float64) (*Controller, *ManualScheduler) {
	sched := NewManualScheduler(time.Unix(0, 0))
	c := New(sched, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.RecalculateDuration(fixedContent(content))
	return c, sched
}

const frame = 16 * time.Millisecond

func TestController_PlayToEnd(t *testing.T) {
	c, sched := newTestController(3)

	ended := 0
	var states []bool
	c.PlaybackEnds().Subscribe(func(PlaybackEnd) { ended++ })
	c.PlayStateChanges().Subscribe(func(e PlayStateChange) { states = append(states, e.IsPlaying) })

	c.Play()
	sched.Step(frame, 250)

	assert.False(t, c.IsPlaying())
	assert.Equal(t, 3.0, c.CurrentTime())
	assert.Equal(t, 1, ended)
	assert.Equal(t, []bool{true, false}, states)
	assert.Equal(t, 0, sched.Pending())
}

func TestController_AdvancesByWallClockDelta(t *testing.T) {
	c, sched := newTestController(60)

	c.Play()
	sched.Advance(500 * time.Millisecond)
	assert.InDelta(t, 0.5, c.CurrentTime(), 1e-9)

	c.SetPlaybackRate(2)
	sched.Advance(250 * time.Millisecond)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)
}

func TestController_PlayIsIdempotent(t *testing.T) {
	c, sched := newTestController(60)

	c.Play()
	c.Play()
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(time.Second)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)
	assert.Equal(t, 1, sched.Pending())
}

func TestController_PauseCancelsLoop(t *testing.T) {
	c, sched := newTestController(60)

	c.Play()
	sched.Advance(time.Second)
	c.Pause()
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(time.Second)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)
}

func TestController_PlayFromEndRestarts(t *testing.T) {
	c, sched := newTestController(2)
	c.Seek(2)

	c.Play()
	assert.Equal(t, 0.0, c.CurrentTime())
	sched.Advance(time.Second)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)
}

func TestController_SeekClampsAndEmits(t *testing.T) {
	c, _ := newTestController(10)

	var seeks []Seek
	var updates []TimeUpdate
	c.Seeks().Subscribe(func(e Seek) { seeks = append(seeks, e) })
	c.TimeUpdates().Subscribe(func(e TimeUpdate) { updates = append(updates, e) })

	c.Seek(20)
	assert.Equal(t, 10.0, c.CurrentTime())
	c.Seek(-5)
	assert.Equal(t, 0.0, c.CurrentTime())

	require.Len(t, seeks, 2)
	require.Len(t, updates, 2)
	assert.Equal(t, Seek{CurrentTime: 10, PreviousTime: 0}, seeks[0])
	assert.Equal(t, TimeUpdate{CurrentTime: 0, PreviousTime: 10}, updates[1])
}

func TestController_ClampInvariant(t *testing.T) {
	c, _ := newTestController(17)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		switch r.Intn(3) {
		case 0:
			c.Seek(r.Float64()*60 - 20)
		case 1:
			c.SeekBy(r.Float64()*20 - 10)
		case 2:
			c.SeekToPercent(r.Float64()*3 - 1)
		}
		assert.GreaterOrEqual(t, c.CurrentTime(), 0.0)
		assert.LessOrEqual(t, c.CurrentTime(), c.ContentDuration())
	}
}

func TestController_SeekWhilePlayingKeepsPlaying(t *testing.T) {
	c, sched := newTestController(60)

	c.Play()
	sched.Advance(time.Second)
	c.Seek(30)
	assert.True(t, c.IsPlaying())

	sched.Advance(time.Second)
	assert.InDelta(t, 31.0, c.CurrentTime(), 1e-9)
}

func TestController_Stop(t *testing.T) {
	c, sched := newTestController(60)
	c.Play()
	sched.Advance(2 * time.Second)

	c.Stop()
	assert.False(t, c.IsPlaying())
	assert.Equal(t, 0.0, c.CurrentTime())
}

func TestController_TogglePlay(t *testing.T) {
	c, _ := newTestController(60)
	c.TogglePlay()
	assert.True(t, c.IsPlaying())
	c.TogglePlay()
	assert.False(t, c.IsPlaying())
}

func TestController_RecalculateDuration(t *testing.T) {
	c, _ := newTestController(0)
	assert.Equal(t, 0.0, c.ContentDuration())
	assert.Equal(t, 30.0, c.TimelineDuration())

	var changes []DurationChange
	c.DurationChanges().Subscribe(func(e DurationChange) { changes = append(changes, e) })

	d := c.RecalculateDuration(fixedContent(100))
	assert.Equal(t, DurationChange{ContentDuration: 100, TimelineDuration: 120}, d)

	d = c.RecalculateDuration(fixedContent(25))
	assert.Equal(t, 35.0, d.TimelineDuration)

	c.RecalculateDuration(fixedContent(25))
	assert.Len(t, changes, 2, "unchanged durations do not emit")
}

func TestController_RecalculateClampsCurrentTime(t *testing.T) {
	c, _ := newTestController(50)
	c.Seek(40)

	c.RecalculateDuration(fixedContent(12))
	assert.Equal(t, 12.0, c.CurrentTime())
}

func TestController_PlaybackRateClamped(t *testing.T) {
	c, _ := newTestController(1)
	c.SetPlaybackRate(10)
	assert.Equal(t, MaxPlaybackRate, c.PlaybackRate())
	c.SetPlaybackRate(0)
	assert.Equal(t, MinPlaybackRate, c.PlaybackRate())
}

func TestController_Progress(t *testing.T) {
	c, _ := newTestController(0)
	assert.Equal(t, 0.0, c.Progress())

	c.RecalculateDuration(fixedContent(8))
	c.Seek(2)
	assert.Equal(t, 0.25, c.Progress())
}

func TestController_HandlerPanicDoesNotStopClock(t *testing.T) {
	c, sched := newTestController(10)
	c.TimeUpdates().Subscribe(func(TimeUpdate) { panic("bad handler") })

	c.Play()
	sched.Step(frame, 10)
	assert.True(t, c.IsPlaying())
	assert.Greater(t, c.CurrentTime(), 0.0)
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{-3, "00:00"},
		{5.9, "0:05"},
		{65, "1:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.in); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
