package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/playback"
)

// findMedia prefers an entry a live session already holds, then falls back to
// the shared cache.
func findMedia(ctx context.Context, cfg ServerConfig, ref string) (*media.Entry, error) {
	if cfg.Sessions != nil {
		for _, s := range cfg.Sessions.List() {
			if e, ok := s.Cache().Get(ref); ok {
				return e, nil
			}
		}
	}
	if cfg.Media == nil {
		return nil, media.ErrSourceUnavailable
	}
	return cfg.Media.Resolve(ctx, ref)
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refParam(r, "ref")
		if !ok {
			WriteError(w, http.StatusBadRequest, "source ref required", "BAD_REQUEST")
			return
		}
		kind, err := media.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		entry, err := findMedia(r.Context(), cfg, ref)
		if err != nil {
			logging.WithSourceRef(cfg.Logger, ref).Warn("media lookup failed", "error", err)
			WriteDomainError(w, err)
			return
		}
		handle, ok := entry.Handle(kind)
		if !ok {
			WriteError(w, http.StatusNotFound, "source has no "+string(kind), "NO_"+kindCode(kind))
			return
		}

		err = cfg.PlaybackServer.ServeContent(w, r, handle)
		if errors.Is(err, playback.ErrUnavailable) {
			WriteError(w, http.StatusGone, "media was released", "MEDIA_RELEASED")
			return
		}
		if err != nil {
			cfg.Logger.Error("playback error", "error", err, "source_ref", ref, "kind", kind)
		}
	}
}

func kindCode(k media.Kind) string {
	if k == media.KindAudio {
		return "AUDIO"
	}
	return "VIDEO"
}
