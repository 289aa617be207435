// Package event provides typed observer feeds with synchronous fan-out.
package event

import (
	"log/slog"
	"sync"
)

// Feed delivers values of type T to every subscribed handler, in subscription
// order, on the goroutine that calls Emit.
//
// A handler that panics is recovered and logged; the remaining handlers still
// receive the value.
type Feed[T any] struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   []subscription[T]
}

type subscription[T any] struct {
	id   int
	fn   func(T)
	once bool
}

// NewFeed creates a feed. The name is only used in log output.
func NewFeed[T any](name string, logger *slog.Logger) *Feed[T] {
	return &Feed[T]{name: name, logger: logger}
}

// Subscribe registers fn and returns a disposer that unregisters it.
// Calling the disposer more than once is harmless.
func (f *Feed[T]) Subscribe(fn func(T)) func() {
	return f.add(fn, false)
}

// Once registers fn for the next emitted value only.
func (f *Feed[T]) Once(fn func(T)) func() {
	return f.add(fn, true)
}

func (f *Feed[T]) add(fn func(T), once bool) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscription[T]{id: id, fn: fn, once: once})
	f.mu.Unlock()

	return func() { f.remove(id) }
}

func (f *Feed[T]) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered at the time of the call.
// Handlers added or removed during delivery take effect on the next Emit.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	subs := make([]subscription[T], len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, s := range subs {
		if s.once {
			f.remove(s.id)
		}
		f.deliver(s.fn, v)
	}
}

// Len returns the number of registered handlers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			logger := f.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("event handler panicked", "feed", f.name, "panic", r)
		}
	}()
	fn(v)
}
