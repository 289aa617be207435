package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPResolver_VideoAndAudio(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/media/BV1/video":
			w.Header().Set("Content-Type", "video/mp4")
			w.Header().Set("X-Media-Title", "Sunset")
			w.Write([]byte("videobytes"))
		case "/media/BV1/audio":
			w.Header().Set("Content-Type", "audio/mp4")
			w.Write([]byte("audio"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r := NewHTTPResolver(server.URL+"/", "tok", 0, testLogger())
	e, err := r.Resolve(context.Background(), "BV1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "Sunset", e.Title)
	assert.Equal(t, int64(10), e.Video.Size())
	assert.Equal(t, "video/mp4", e.Video.ContentType())
	require.NotNil(t, e.Audio)
	assert.Equal(t, int64(5), e.Audio.Size())
}

func TestHTTPResolver_AudioIsOptional(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/media/BV2/video" {
			w.Write([]byte("v"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	e, err := NewHTTPResolver(server.URL, "", 0, testLogger()).Resolve(context.Background(), "BV2")
	require.NoError(t, err)
	assert.Nil(t, e.Audio)
}

func TestHTTPResolver_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrSourceUnavailable},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPResolver(server.URL, "", 0, testLogger()).Resolve(context.Background(), "BV3")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.retryable, fe.IsRetryable())
		})
	}
}

func TestHTTPResolver_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	_, err := NewHTTPResolver(server.URL, "", 16, testLogger()).Resolve(context.Background(), "BV4")
	assert.Error(t, err)
}

func TestFileResolver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "trips"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "trips", "beach.mp4"), []byte("mp4data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "trips", "beach.m4a"), []byte("aac"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "solo.webm"), []byte("webm"), 0o644))

	r := NewFileResolver(root, 0)

	e, err := r.Resolve(context.Background(), FileRef("trips/beach.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "beach", e.Title)
	assert.Equal(t, int64(7), e.Video.Size())
	require.NotNil(t, e.Audio)
	assert.Equal(t, int64(3), e.Audio.Size())

	e, err = r.Resolve(context.Background(), "file:solo.webm")
	require.NoError(t, err)
	assert.Nil(t, e.Audio)

	_, err = r.Resolve(context.Background(), "file:missing.mp4")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFileResolver_RejectsEscapes(t *testing.T) {
	r := NewFileResolver(t.TempDir(), 0)

	for _, ref := range []string{"file:../etc/passwd", "file:a/../../b", "BV1", "file:"} {
		_, err := r.PathFor(ref)
		assert.ErrorIs(t, err, ErrSourceUnavailable, ref)
	}
}

func TestRouter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp4"), []byte("x"), 0o644))

	remote := ResolverFunc(func(ctx context.Context, ref string) (*Entry, error) {
		return &Entry{Title: "remote", Video: NewHandle(KindVideo, "", []byte("r"))}, nil
	})
	r := Router{Files: NewFileResolver(root, 0), Fallback: remote}

	e, err := r.Resolve(context.Background(), "file:a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "a", e.Title)

	e, err = r.Resolve(context.Background(), "BV9")
	require.NoError(t, err)
	assert.Equal(t, "remote", e.Title)

	_, err = Router{}.Resolve(context.Background(), "BV9")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
