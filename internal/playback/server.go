// Package playback serves media bytes to the browser with HTTP range
// support so that seeking in a video element only fetches what it needs.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Content is a seekable media payload, such as a cached media handle.
type Content interface {
	ContentType() string
	Size() int64
	Open() (io.ReadSeeker, error)
}

type PlaybackService interface {
	ServeContent(w http.ResponseWriter, r *http.Request, c Content) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ErrUnavailable is returned when the content can no longer be opened. No
// response has been written when it is returned.
var ErrUnavailable = errors.New("content unavailable")

func (s *Server) ServeContent(w http.ResponseWriter, r *http.Request, c Content) error {
	body, err := c.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	size := c.Size()
	contentType := c.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	span, ranged, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// A malformed Range header is ignored and the whole payload served.
		ranged = false
	}

	if !ranged {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, body, size)
		}
		return nil
	}

	if _, err := body.Seek(span.First, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(span.Len(), 10))
	w.Header().Set("Content-Range", span.Header(size))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method != http.MethodHead {
		s.copy(w, body, span.Len())
	}
	return nil
}

func (s *Server) copy(w io.Writer, body io.Reader, n int64) {
	if _, err := io.CopyN(w, body, n); err != nil && s.logger != nil {
		s.logger.Debug("media response cut short", "error", err)
	}
}
