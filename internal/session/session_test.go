package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type trackingResolver struct {
	mu      sync.Mutex
	entries []*media.Entry
}

func (r *trackingResolver) Resolve(ctx context.Context, ref string) (*media.Entry, error) {
	e := &media.Entry{
		Video: media.NewHandle(media.KindVideo, "video/mp4", []byte(ref)),
		Audio: media.NewHandle(media.KindAudio, "audio/mp4", []byte(ref)),
	}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return e, nil
}

func manualOptions() (Options, *clock.ManualScheduler) {
	sched := clock.NewManualScheduler(time.Unix(0, 0))
	return Options{
		Scheduler: func(func(func()) bool) clock.Scheduler { return sched },
	}, sched
}

func newTestSession(t *testing.T) (*Session, *clock.ManualScheduler, *trackingResolver) {
	t.Helper()
	opts, sched := manualOptions()
	res := &trackingResolver{}
	s := New("s1", "Draft", res, nil, opts, testLogger())
	t.Cleanup(func() { s.Close() })
	return s, sched, res
}

func addClip(t *testing.T, s *Session, ref string, start, end float64, track int) timeline.Clip {
	t.Helper()
	var clip timeline.Clip
	var err error
	require.NoError(t, s.Do(func(c *editor.Core) {
		clip, err = c.AddClip(ref, start, end, track, editor.AddOptions{})
	}))
	require.NoError(t, err)
	return clip
}

func TestSession_PlayToEnd(t *testing.T) {
	s, sched, _ := newTestSession(t)
	addClip(t, s, "BV1", 0, 3, 0)
	require.NoError(t, s.Warm(context.Background(), 2))

	ended := 0
	require.NoError(t, s.Do(func(c *editor.Core) {
		c.Clock().PlaybackEnds().Subscribe(func(clock.PlaybackEnd) { ended++ })
		c.Play()
	}))
	require.NoError(t, s.Do(func(*editor.Core) { sched.Step(50*time.Millisecond, 100) }))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, 3.0, snap.CurrentTime)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, "0:03", snap.TimeLabel)

	require.NoError(t, s.Do(func(*editor.Core) {}))
	assert.Equal(t, 1, ended)
}

func TestSession_Snapshot(t *testing.T) {
	s, _, _ := newTestSession(t)
	clip := addClip(t, s, "BV1", 0, 8, 0)
	require.NoError(t, s.Do(func(c *editor.Core) { c.SelectClip(clip.ID, false) }))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, "Draft", snap.Title)
	assert.Equal(t, 8.0, snap.ContentDuration)
	assert.Equal(t, 30.0, snap.TimelineDuration)
	assert.Equal(t, []string{clip.ID}, snap.Selection)
	assert.Equal(t, clip.ID, snap.SelectedClipID)
	assert.True(t, snap.CanUndo)
	assert.False(t, snap.CanRedo)
	assert.Equal(t, 1.0, snap.PlaybackRate)

	snap.Tracks.Video[0][0].Title = "changed"
	again, _ := s.Snapshot()
	assert.Empty(t, again.Tracks.Video[0][0].Title, "snapshots are copies")
}

func TestSession_FrameAfterWarm(t *testing.T) {
	s, _, _ := newTestSession(t)
	addClip(t, s, "BV1", 2, 8, 0)
	require.NoError(t, s.Warm(context.Background(), 1))
	require.NoError(t, s.SeekTo(context.Background(), 1))

	frame, err := s.Frame()
	require.NoError(t, err)
	require.Len(t, frame, 1)
	assert.Equal(t, "BV1", frame[0].SourceRef)
	assert.True(t, frame[0].Visible)
	assert.Equal(t, 3.0, frame[0].Position)
}

func TestSession_CloseReleasesMediaOnce(t *testing.T) {
	s, _, res := newTestSession(t)
	addClip(t, s, "BV1", 0, 4, 0)
	addClip(t, s, "BV2", 0, 4, 1)
	require.NoError(t, s.Warm(context.Background(), 2))
	require.NoError(t, s.SeekTo(context.Background(), 0))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	res.mu.Lock()
	defer res.mu.Unlock()
	require.Len(t, res.entries, 2)
	for _, e := range res.entries {
		assert.True(t, e.Video.Released())
		assert.True(t, e.Audio.Released())
	}

	assert.ErrorIs(t, s.Do(func(*editor.Core) {}), ErrClosed)
	assert.ErrorIs(t, s.SeekTo(context.Background(), 1), ErrClosed)
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_LoadReplacesContent(t *testing.T) {
	s, _, _ := newTestSession(t)
	addClip(t, s, "BV1", 0, 4, 0)

	other, _, _ := newTestSession(t)
	addClip(t, other, "BV7", 0, 6, 0)
	addClip(t, other, "BV8", 0, 2, 1)
	theirs, err := other.Snapshot()
	require.NoError(t, err)

	require.NoError(t, s.Load(theirs.Tracks, 5))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 6.0, snap.ContentDuration)
	assert.Equal(t, 5.0, snap.CurrentTime)
	assert.False(t, snap.CanUndo)
	assert.Equal(t, []string{"BV7", "BV8"}, SourceRefs(snap.Tracks))
}

func TestSession_PrefetchOnAdd(t *testing.T) {
	opts, _ := manualOptions()
	p := media.NewPrefetcher(1, 8, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	s := New("s2", "", &trackingResolver{}, p, opts, testLogger())
	defer s.Close()

	addClip(t, s, "BV5", 0, 4, 0)
	require.Eventually(t, func() bool {
		_, ok := s.Cache().Get("BV5")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func startPrefetcher(t *testing.T) *media.Prefetcher {
	t.Helper()
	p := media.NewPrefetcher(1, 8, testLogger())
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
	return p
}

func TestSession_RenderFetchesMissingSource(t *testing.T) {
	opts, _ := manualOptions()
	s := New("s3", "", &trackingResolver{}, startPrefetcher(t), opts, testLogger())
	t.Cleanup(func() { s.Close() })

	addClip(t, s, "BV5", 0, 4, 0)
	addClip(t, s, "BV6", 0, 4, 0)
	require.Eventually(t, func() bool {
		return s.Cache().Len() == 2
	}, time.Second, 5*time.Millisecond)
	require.True(t, s.Cache().Release("BV6"))

	require.NoError(t, s.Do(func(c *editor.Core) { c.Seek(5) }))
	frame, err := s.Frame()
	require.NoError(t, err)
	assert.True(t, frame[0].Missing)

	require.Eventually(t, func() bool {
		_, ok := s.Cache().Get("BV6")
		return ok
	}, time.Second, 5*time.Millisecond, "the compositor asks for the source it could not find")

	require.Eventually(t, func() bool {
		_ = s.Do(func(*editor.Core) { s.comp.Render() })
		f, err := s.Frame()
		return err == nil && f[0].SourceRef == "BV6" && f[0].Visible
	}, time.Second, 5*time.Millisecond)
}

func TestSourceRefs(t *testing.T) {
	tr := timeline.Tracks{Video: []timeline.Track{
		{{SourceRef: "a"}, {SourceRef: "b"}, {SourceRef: "a"}},
		{{SourceRef: "c"}, {SourceRef: "b"}},
	}}
	assert.Equal(t, []string{"a", "b", "c"}, SourceRefs(tr))
	assert.Empty(t, SourceRefs(timeline.CreateEmptyTracks()))
}
