package clock

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler requests a single callback for the next frame. The returned
// cancel function prevents the callback from running if it has not yet.
type Scheduler interface {
	Request(fn func(now time.Time)) (cancel func())
	Now() time.Time
}

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler fires one-shot frames on a timer and hands them to post,
// which is expected to run them on the owning session loop. Each frame is
// requested only after the previous one ran, so frames never pile up. Elapsed
// time is always measured by the caller from the monotonic clock, never by
// counting frames.
type FrameScheduler struct {
	interval time.Duration
	post     func(func()) bool
}

func NewFrameScheduler(interval time.Duration, post func(func()) bool) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval, post: post}
}

func (s *FrameScheduler) Now() time.Time {
	return time.Now()
}

func (s *FrameScheduler) Request(fn func(now time.Time)) func() {
	var cancelled atomic.Bool
	timer := time.AfterFunc(s.interval, func() {
		if cancelled.Load() {
			return
		}
		s.post(func() {
			if cancelled.Load() {
				return
			}
			fn(time.Now())
		})
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}

// ManualScheduler is a Scheduler driven by explicit Advance calls, for
// deterministic tests and offline rendering.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending map[int]func(time.Time)
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, pending: make(map[int]func(time.Time))}
}

func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) Request(fn func(now time.Time)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.pending[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}
}

// Advance moves simulated time forward by d and runs every callback that was
// pending before the call. Callbacks requested while running wait for the
// next Advance.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	ids := make([]int, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Ints(ids)
	for _, id := range ids {
		m.mu.Lock()
		fn, ok := m.pending[id]
		delete(m.pending, id)
		m.mu.Unlock()
		if ok {
			fn(now)
		}
	}
}

// Step advances n frames of d each.
func (m *ManualScheduler) Step(d time.Duration, n int) {
	for i := 0; i < n; i++ {
		m.Advance(d)
	}
}

func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
