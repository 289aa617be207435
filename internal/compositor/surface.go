package compositor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var ErrSurfaceClosed = errors.New("surface closed")

// Surface is the playback element of one track. SetSource and WaitReady may
// be called from a background goroutine; the other methods are called from
// the session loop, never concurrently with a pending switch.
type Surface interface {
	SetSource(entry *media.Entry) error
	// WaitReady blocks until the assigned source can seek or fails with a
	// decode error.
	WaitReady(ctx context.Context) error
	Seek(sourceTime float64)
	Play()
	Pause()
	// SetRate sets how many source seconds play per second of wall time.
	SetRate(rate float64)
	Position() float64
	SetVisible(visible bool)
	SetTransform(t timeline.Transform)
	Close() error
}

// SurfaceFactory creates the surface for a track index.
type SurfaceFactory func(trackIndex int) Surface

// MirrorState is a snapshot of a MirrorSurface.
type MirrorState struct {
	SourceRef string             `json:"source_ref,omitempty"`
	HasAudio  bool               `json:"has_audio"`
	Position  float64            `json:"position"`
	Rate      float64            `json:"rate"`
	Playing   bool               `json:"playing"`
	Visible   bool               `json:"visible"`
	Transform timeline.Transform `json:"transform"`
	Loads     int                `json:"loads"`
	Seeks     int                `json:"seeks"`
	Closed    bool               `json:"closed"`
}

// MirrorSurface records what a real player should be doing, advancing its
// position with wall time while playing. The agent uses it to describe the
// frame to the browser, which owns the actual video elements.
type MirrorSurface struct {
	now func() time.Time

	mu        sync.Mutex
	ref       string
	hasAudio  bool
	ready     bool
	position  float64
	rate      float64
	since     time.Time
	playing   bool
	visible   bool
	transform timeline.Transform
	loads     int
	seeks     int
	closed    bool
}

func NewMirrorSurface(now func() time.Time) *MirrorSurface {
	if now == nil {
		now = time.Now
	}
	return &MirrorSurface{now: now, rate: 1, transform: timeline.DefaultTransform()}
}

func (s *MirrorSurface) SetSource(entry *media.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSurfaceClosed
	}
	if entry == nil || entry.Video == nil || entry.Video.Released() {
		s.ready = false
		return fmt.Errorf("%w: no playable video", ErrDecode)
	}
	s.ref = entry.SourceRef
	s.hasAudio = entry.Audio != nil
	s.position = 0
	s.playing = false
	s.ready = true
	s.loads++
	return nil
}

func (s *MirrorSurface) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrSurfaceClosed
	case !s.ready:
		return ErrDecode
	}
	return nil
}

func (s *MirrorSurface) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = t
	s.since = s.now()
	s.seeks++
}

func (s *MirrorSurface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.since = s.now()
	s.playing = true
}

func (s *MirrorSurface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = s.positionLocked()
	s.playing = false
}

func (s *MirrorSurface) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *MirrorSurface) positionLocked() float64 {
	if !s.playing {
		return s.position
	}
	return s.position + s.now().Sub(s.since).Seconds()*s.rate
}

func (s *MirrorSurface) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate <= 0 {
		rate = 1
	}
	s.position = s.positionLocked()
	s.since = s.now()
	s.rate = rate
}

func (s *MirrorSurface) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

func (s *MirrorSurface) SetTransform(t timeline.Transform) {
	s.mu.Lock()
	s.transform = t
	s.mu.Unlock()
}

func (s *MirrorSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSurfaceClosed
	}
	s.closed = true
	s.playing = false
	s.ready = false
	return nil
}

func (s *MirrorSurface) State() MirrorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MirrorState{
		SourceRef: s.ref,
		HasAudio:  s.hasAudio,
		Position:  s.positionLocked(),
		Rate:      s.rate,
		Playing:   s.playing,
		Visible:   s.visible,
		Transform: s.transform,
		Loads:     s.loads,
		Seeks:     s.seeks,
		Closed:    s.closed,
	}
}
