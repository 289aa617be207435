// Package loop runs closures one at a time on a dedicated goroutine.
//
// Everything that touches a session's timeline, clock or compositor
// bookkeeping is funnelled through a Loop, so those structures never need
// their own locks and a frame tick can never observe a half-applied edit.
package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("loop closed")

type Loop struct {
	tasks   chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Loop {
	l := &Loop{
		tasks:   make(chan func(), 64),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn without waiting for it. It returns false once the loop is
// closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from a task already running on the same loop.
func (l *Loop) Do(fn func()) error {
	result := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("loop task panicked: %v", r)
			}
		}()
		fn()
		result <- nil
	}

	if !l.Post(task) {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-l.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop after the task currently running, if any, returns.
// Queued tasks that have not started are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.stopped
}

func (l *Loop) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
