package media

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cutdeck/cutdeck-agent/internal/logging"
)

type prefetchJob struct {
	cache *Cache
	ref   string
}

// Prefetcher resolves refs into session caches in the background so that
// clips are ready before the playhead reaches them.
type Prefetcher struct {
	queue        chan prefetchJob
	workers      int
	maxAttempts  int
	retryDelay   time.Duration
	pollInterval time.Duration
	logger       *slog.Logger

	running atomic.Bool
	paused  atomic.Bool
	done    atomic.Int64
	failed  atomic.Int64
}

func NewPrefetcher(workers, queueSize int, logger *slog.Logger) *Prefetcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{
		queue:        make(chan prefetchJob, queueSize),
		workers:      workers,
		maxAttempts:  3,
		retryDelay:   time.Second,
		pollInterval: 250 * time.Millisecond,
		logger:       logger,
	}
}

// Start runs the workers until ctx is cancelled.
func (p *Prefetcher) Start(ctx context.Context) {
	if p.running.Swap(true) {
		return
	}
	defer p.running.Store(false)

	p.logger.Info("prefetcher started", "workers", p.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	g.Wait()

	p.logger.Info("prefetcher stopping")
}

func (p *Prefetcher) work(ctx context.Context) {
	for {
		if p.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.process(ctx, job)
		}
	}
}

func (p *Prefetcher) process(ctx context.Context, job prefetchJob) {
	logger := logging.WithSourceRef(p.logger, job.ref)
	for attempt := 1; ; attempt++ {
		_, err := job.cache.Resolve(ctx, job.ref)
		if err == nil {
			p.done.Add(1)
			return
		}
		if errors.Is(err, ErrCacheClosed) || ctx.Err() != nil {
			return
		}

		var fe *FetchError
		if errors.As(err, &fe) && fe.IsRetryable() && attempt < p.maxAttempts {
			logger.Debug("prefetch retry", "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
			continue
		}

		p.failed.Add(1)
		logger.Warn("prefetch failed", "error", err)
		return
	}
}

// Enqueue schedules refs for cache without blocking and returns how many were
// queued. Cached refs are skipped and refs that do not fit are dropped.
func (p *Prefetcher) Enqueue(cache *Cache, refs ...string) int {
	queued := 0
	for _, ref := range refs {
		if _, ok := cache.Get(ref); ok {
			continue
		}
		select {
		case p.queue <- prefetchJob{cache: cache, ref: ref}:
			queued++
		default:
			p.logger.Warn("prefetch queue full, dropping", "source_ref", ref)
		}
	}
	return queued
}

func (p *Prefetcher) Pause() {
	p.paused.Store(true)
	p.logger.Info("prefetcher paused")
}

func (p *Prefetcher) Resume() {
	p.paused.Store(false)
	p.logger.Info("prefetcher resumed")
}

func (p *Prefetcher) IsPaused() bool  { return p.paused.Load() }
func (p *Prefetcher) IsRunning() bool { return p.running.Load() }
func (p *Prefetcher) Pending() int    { return len(p.queue) }

// Stats returns how many prefetches completed and failed.
func (p *Prefetcher) Stats() (done, failed int64) {
	return p.done.Load(), p.failed.Load()
}

// Warm resolves refs into cache with at most limit concurrent resolves and
// returns the first error.
func Warm(ctx context.Context, cache *Cache, refs []string, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		ref := ref
		g.Go(func() error {
			_, err := cache.Resolve(ctx, ref)
			return err
		})
	}
	return g.Wait()
}
