package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSourceBytes caps a single downloaded buffer.
const DefaultMaxSourceBytes = 512 << 20

// HTTPResolver downloads source media from a remote media endpoint:
// GET {baseURL}/media/{ref}/video and, optionally, /audio.
type HTTPResolver struct {
	baseURL    string
	token      string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPResolver(baseURL, token string, maxBytes int64, logger *slog.Logger) *HTTPResolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPResolver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		maxBytes: maxBytes,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, sourceRef string) (*Entry, error) {
	video, title, err := r.fetch(ctx, sourceRef, KindVideo)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, sourceRef, err)
		}
		return nil, err
	}

	entry := &Entry{SourceRef: sourceRef, Title: title, Video: video}

	audio, _, err := r.fetch(ctx, sourceRef, KindAudio)
	switch {
	case err == nil:
		entry.Audio = audio
	case isNotFound(err):
	default:
		r.logger.Warn("audio fetch failed, continuing without audio", "source_ref", sourceRef, "error", err)
	}
	return entry, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, ref string, kind Kind) (*Handle, string, error) {
	u := fmt.Sprintf("%s/media/%s/%s", r.baseURL, url.PathEscape(ref), kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("X-Cutdeck-Request-Id", uuid.NewString())

	started := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s body: %w", kind, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, "", fmt.Errorf("%s for %s exceeds %d bytes", kind, ref, r.maxBytes)
	}

	r.logger.Debug("media fetched",
		"source_ref", ref,
		"kind", kind,
		"bytes", len(data),
		"duration", time.Since(started),
	)
	return NewHandle(kind, resp.Header.Get("Content-Type"), data), resp.Header.Get("X-Media-Title"), nil
}

func isNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}
