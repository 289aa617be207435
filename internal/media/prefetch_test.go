package media

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPrefetcher(t *testing.T, p *Prefetcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, p.IsRunning, time.Second, 5*time.Millisecond)
}

func TestPrefetcher_FillsCache(t *testing.T) {
	res := &countingResolver{size: 2}
	cache := NewCache(res, 0, testLogger())
	p := NewPrefetcher(2, 8, testLogger())
	startPrefetcher(t, p)

	assert.Equal(t, 3, p.Enqueue(cache, "a", "b", "c"))

	require.Eventually(t, func() bool { return cache.Len() == 3 }, time.Second, 5*time.Millisecond)
	done, failed := p.Stats()
	assert.Equal(t, int64(3), done)
	assert.Equal(t, int64(0), failed)
}

func TestPrefetcher_SkipsCachedRefs(t *testing.T) {
	res := &countingResolver{size: 2}
	cache := NewCache(res, 0, testLogger())
	_, err := cache.Resolve(context.Background(), "a")
	require.NoError(t, err)

	p := NewPrefetcher(1, 8, testLogger())
	assert.Equal(t, 0, p.Enqueue(cache, "a"))
}

func TestPrefetcher_DropsWhenFull(t *testing.T) {
	cache := NewCache(&countingResolver{size: 1}, 0, testLogger())
	p := NewPrefetcher(1, 2, testLogger())

	assert.Equal(t, 2, p.Enqueue(cache, "a", "b", "c"))
	assert.Equal(t, 2, p.Pending())
}

func TestPrefetcher_PauseHoldsQueue(t *testing.T) {
	res := &countingResolver{size: 1}
	cache := NewCache(res, 0, testLogger())
	p := NewPrefetcher(1, 8, testLogger())
	p.pollInterval = 5 * time.Millisecond
	p.Pause()
	startPrefetcher(t, p)

	p.Enqueue(cache, "a")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), res.calls.Load())
	assert.True(t, p.IsPaused())

	p.Resume()
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPrefetcher_RetriesRetryableErrors(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(ResolverFunc(func(ctx context.Context, ref string) (*Entry, error) {
		if calls.Add(1) < 3 {
			return nil, &FetchError{StatusCode: 503}
		}
		return bytesEntry(1), nil
	}), 0, testLogger())

	p := NewPrefetcher(1, 8, testLogger())
	p.retryDelay = time.Millisecond
	startPrefetcher(t, p)

	p.Enqueue(cache, "a")
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPrefetcher_GivesUpOnPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(ResolverFunc(func(ctx context.Context, ref string) (*Entry, error) {
		calls.Add(1)
		return nil, &FetchError{StatusCode: 403}
	}), 0, testLogger())

	p := NewPrefetcher(1, 8, testLogger())
	startPrefetcher(t, p)

	p.Enqueue(cache, "a")
	require.Eventually(t, func() bool {
		_, failed := p.Stats()
		return failed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWarm(t *testing.T) {
	res := &countingResolver{size: 1}
	cache := NewCache(res, 0, testLogger())

	require.NoError(t, Warm(context.Background(), cache, []string{"a", "b", "a", "c"}, 2))
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, int32(3), res.calls.Load())
}
