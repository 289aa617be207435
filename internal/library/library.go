// Package library indexes the video files under a local directory and keeps
// the index current as files come and go. Items are addressed by file refs
// that the media file resolver understands.
package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"

	"github.com/cutdeck/cutdeck-agent/internal/event"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/watcher"
)

// DefaultDebounce groups bursts of file events into one refresh.
const DefaultDebounce = 250 * time.Millisecond

var videoExts = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// IsVideo reports whether name has a video extension the library indexes.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

type Item struct {
	Ref     string    `json:"ref"`
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Artist  string    `json:"artist,omitempty"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type Library struct {
	root     string
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.RWMutex
	items   []Item
	byRef   map[string]Item
	scanned time.Time

	timerMu sync.Mutex
	timer   *time.Timer

	updated *event.Feed[int]
}

func New(root string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		root:     root,
		logger:   logger,
		debounce: DefaultDebounce,
		byRef:    make(map[string]Item),
		updated:  event.NewFeed[int]("library_updated", logger),
	}
}

func (l *Library) Root() string { return l.root }

// Updated fires with the item count after every refresh.
func (l *Library) Updated() *event.Feed[int] { return l.updated }

// Refresh rescans the whole tree. Unreadable entries are skipped.
func (l *Library) Refresh(ctx context.Context) error {
	var items []Item
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == l.root {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if strings.HasPrefix(d.Name(), ".") && p != l.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsVideo(d.Name()) {
			return nil
		}

		item, err := l.probe(p)
		if err != nil {
			l.logger.Debug("skipping library file", "path", p, "error", err)
			return nil
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	byRef := make(map[string]Item, len(items))
	for _, it := range items {
		byRef[it.Ref] = it
	}

	l.mu.Lock()
	l.items = items
	l.byRef = byRef
	l.scanned = time.Now()
	l.mu.Unlock()

	l.logger.Debug("library refreshed", "items", len(items))
	l.updated.Emit(len(items))
	return nil
}

func (l *Library) probe(path string) (Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Item{}, err
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return Item{}, err
	}
	rel = filepath.ToSlash(rel)

	item := Item{
		Ref:     media.FileRef(rel),
		Path:    rel,
		Title:   strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}

	title, artist := readTags(path)
	if title != "" {
		item.Title = title
	}
	item.Artist = artist
	return item, nil
}

// readTags returns the container's title and artist tags, empty when the
// file carries none or its format is not understood.
func readTags(path string) (title, artist string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer func() { _ = f.Close() }()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(metadata.Title()), strings.TrimSpace(metadata.Artist())
}

// Items returns the indexed files ordered by path.
func (l *Library) Items() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Item(nil), l.items...)
}

func (l *Library) Lookup(ref string) (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.byRef[ref]
	return it, ok
}

func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *Library) LastScan() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scanned
}

// Watch refreshes once, then keeps the index current from w's events until
// ctx is done. Events are debounced.
func (l *Library) Watch(ctx context.Context, w watcher.Watcher) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}
	w.OnChange(func(path string, ev watcher.EventType) {
		if ev != watcher.EventDelete && !IsVideo(path) {
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				return
			}
		}
		l.scheduleRefresh(ctx)
	})
	if err := w.Watch(ctx, l.root); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		l.timerMu.Lock()
		if l.timer != nil {
			l.timer.Stop()
		}
		l.timerMu.Unlock()
		_ = w.Stop()
	}()
	return nil
}

func (l *Library) scheduleRefresh(ctx context.Context) {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := l.Refresh(ctx); err != nil {
			l.logger.Warn("library refresh failed", "error", err)
		}
	})
}
