package media

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

type cacheItem struct {
	ref   string
	entry *Entry
	pins  int
}

// Cache keeps resolved entries by source ref. Concurrent resolves of the same
// ref share one call to the resolver. When maxBytes is positive the least
// recently used entries are released to stay under it; the newest entry and
// pinned entries are always kept.
type Cache struct {
	resolver Resolver
	maxBytes int64
	logger   *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	items  map[string]*list.Element
	lru    *list.List
	size   int64
	closed bool
}

func NewCache(resolver Resolver, maxBytes int64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		resolver: resolver,
		maxBytes: maxBytes,
		logger:   logger,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a cached entry without resolving.
func (c *Cache) Get(ref string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[ref]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*cacheItem).entry, true
}

// Acquire is Get that also pins the entry against eviction until Unpin.
func (c *Cache) Acquire(ref string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[ref]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	item := el.Value.(*cacheItem)
	item.pins++
	return item.entry, true
}

// Unpin undoes one Acquire. Entries held over the size limit only by their
// pin are evicted once the last pin goes.
func (c *Cache) Unpin(ref string) {
	c.mu.Lock()
	el, ok := c.items[ref]
	if !ok || el.Value.(*cacheItem).pins == 0 {
		c.mu.Unlock()
		return
	}
	el.Value.(*cacheItem).pins--
	evicted := c.trimLocked()
	c.mu.Unlock()
	c.releaseEvicted(evicted)
}

// Resolve returns the cached entry for ref, resolving it first if needed.
func (c *Cache) Resolve(ctx context.Context, ref string) (*Entry, error) {
	if e, ok := c.Get(ref); ok {
		return e, nil
	}
	if c.Closed() {
		return nil, ErrCacheClosed
	}

	v, err, _ := c.group.Do(ref, func() (any, error) {
		if e, ok := c.Get(ref); ok {
			return e, nil
		}
		e, err := c.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if e == nil || e.Video == nil {
			return nil, fmt.Errorf("%w: %s has no video", ErrSourceUnavailable, ref)
		}
		e.SourceRef = ref
		if err := c.put(e); err != nil {
			e.Release()
			return nil, err
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) put(e *Entry) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	c.items[e.SourceRef] = c.lru.PushFront(&cacheItem{ref: e.SourceRef, entry: e})
	c.size += e.Size()
	evicted := c.trimLocked()
	c.mu.Unlock()

	c.releaseEvicted(evicted)
	return nil
}

// trimLocked removes unpinned entries, oldest first, until the cache fits in
// maxBytes or only the newest and pinned entries are left.
func (c *Cache) trimLocked() []*Entry {
	var evicted []*Entry
	for el := c.lru.Back(); el != nil && el != c.lru.Front(); {
		if c.maxBytes <= 0 || c.size <= c.maxBytes {
			break
		}
		prev := el.Prev()
		if item := el.Value.(*cacheItem); item.pins == 0 {
			c.removeLocked(el)
			evicted = append(evicted, item.entry)
		}
		el = prev
	}
	return evicted
}

func (c *Cache) releaseEvicted(evicted []*Entry) {
	for _, old := range evicted {
		c.logger.Debug("media entry evicted", "source_ref", old.SourceRef, "bytes", old.Size())
		c.releaseEntry(old)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	item := el.Value.(*cacheItem)
	c.lru.Remove(el)
	delete(c.items, item.ref)
	c.size -= item.entry.Size()
}

// Release drops one entry from the cache and releases its buffers.
func (c *Cache) Release(ref string) bool {
	c.mu.Lock()
	el, ok := c.items[ref]
	if ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()
	if ok {
		c.releaseEntry(el.Value.(*cacheItem).entry)
	}
	return ok
}

// Close releases every cached entry. Later resolves fail with ErrCacheClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var entries []*Entry
	for el := c.lru.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*cacheItem).entry)
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.size = 0
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", e.SourceRef, err))
		}
	}
	c.logger.Debug("media cache closed", "entries", len(entries))
	return errors.Join(errs...)
}

func (c *Cache) releaseEntry(e *Entry) {
	if err := e.Release(); err != nil {
		c.logger.Warn("media release failed", "source_ref", e.SourceRef, "error", err)
	}
}

func (c *Cache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Refs lists cached refs, most recently used first.
func (c *Cache) Refs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		refs = append(refs, el.Value.(*cacheItem).ref)
	}
	return refs
}
