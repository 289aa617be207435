// Package media resolves source refs into playable byte buffers and caches
// them for the lifetime of an editing session.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrSourceUnavailable = errors.New("media source unavailable")
	ErrAlreadyReleased   = errors.New("media handle already released")
	ErrCacheClosed       = errors.New("media cache closed")
)

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVideo, KindAudio:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// FetchError is a non-2xx response from a remote media endpoint.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("media fetch failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors are permanent.
func (e *FetchError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// Handle is one in-memory media buffer. After Release it can no longer be
// opened; readers opened earlier stay valid.
type Handle struct {
	kind        Kind
	contentType string

	mu       sync.RWMutex
	data     []byte
	released bool
}

func NewHandle(kind Kind, contentType string, data []byte) *Handle {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Handle{kind: kind, contentType: contentType, data: data}
}

func (h *Handle) Kind() Kind          { return h.kind }
func (h *Handle) ContentType() string { return h.contentType }

func (h *Handle) Size() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.data))
}

func (h *Handle) Open() (io.ReadSeeker, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil, ErrAlreadyReleased
	}
	return bytes.NewReader(h.data), nil
}

// Release drops the buffer. A second call returns ErrAlreadyReleased.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrAlreadyReleased
	}
	h.released = true
	h.data = nil
	return nil
}

func (h *Handle) Released() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}

// Entry is a resolved source: a video buffer and an optional separate audio
// buffer.
type Entry struct {
	SourceRef string
	Title     string
	Video     *Handle
	Audio     *Handle
}

func (e *Entry) Handle(kind Kind) (*Handle, bool) {
	switch kind {
	case KindVideo:
		return e.Video, e.Video != nil
	case KindAudio:
		return e.Audio, e.Audio != nil
	}
	return nil, false
}

func (e *Entry) Size() int64 {
	var n int64
	if e.Video != nil {
		n += e.Video.Size()
	}
	if e.Audio != nil {
		n += e.Audio.Size()
	}
	return n
}

// Release releases every handle of the entry.
func (e *Entry) Release() error {
	var err error
	if e.Video != nil {
		err = e.Video.Release()
	}
	if e.Audio != nil {
		if aerr := e.Audio.Release(); aerr != nil && err == nil {
			err = aerr
		}
	}
	return err
}

type Resolver interface {
	Resolve(ctx context.Context, sourceRef string) (*Entry, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, sourceRef string) (*Entry, error)

func (f ResolverFunc) Resolve(ctx context.Context, sourceRef string) (*Entry, error) {
	return f(ctx, sourceRef)
}
