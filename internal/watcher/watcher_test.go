package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]EventType
}

func (r *recorder) record(path string, ev EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]EventType)
	}
	r.events[path] = append(r.events[path], ev)
}

func (r *recorder) has(path string, ev EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events[path] {
		if e == ev {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestWatcher(t *testing.T) (*FSWatcher, *recorder, string) {
	t.Helper()
	dir := t.TempDir()
	w := NewFSWatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	w.OnChange(rec.record)

	if err := w.Watch(context.Background(), dir); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w, rec, dir
}

func TestFSWatcher_CreateAndDelete(t *testing.T) {
	_, rec, dir := newTestWatcher(t)

	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return rec.has(path, EventCreate) })

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, func() bool { return rec.has(path, EventDelete) })
}

func TestFSWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	_, rec, dir := newTestWatcher(t)

	sub := filepath.Join(dir, "day1")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitFor(t, func() bool { return rec.has(sub, EventCreate) })

	path := filepath.Join(sub, "a.mp4")
	// The directory may be registered just after its create event arrives.
	waitFor(t, func() bool {
		_ = os.WriteFile(path, []byte("x"), 0o644)
		return rec.has(path, EventCreate) || rec.has(path, EventModify)
	})
}

func TestFSWatcher_IgnoresHidden(t *testing.T) {
	_, rec, dir := newTestWatcher(t)

	hidden := filepath.Join(dir, ".partial")
	visible := filepath.Join(dir, "done.mp4")
	if err := os.WriteFile(hidden, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(visible, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return rec.has(visible, EventCreate) })
	if rec.has(hidden, EventCreate) {
		t.Error("hidden file reported")
	}
}

func TestFSWatcher_StopAndContext(t *testing.T) {
	w, _, _ := newTestWatcher(t)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not exit")
	}
	if err := w.Watch(context.Background(), t.TempDir()); err != ErrStopped {
		t.Errorf("Watch() after Stop error = %v, want ErrStopped", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w2 := NewFSWatcher(nil)
	if err := w2.Watch(ctx, t.TempDir()); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	cancel()
	select {
	case <-w2.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not exit on cancel")
	}
}

func TestFSWatcher_MissingRoot(t *testing.T) {
	w := NewFSWatcher(nil)
	if err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestEventTypeString(t *testing.T) {
	if EventCreate.String() != "create" || EventModify.String() != "modify" || EventDelete.String() != "delete" {
		t.Error("unexpected event names")
	}
}
