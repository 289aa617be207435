package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutdeck/cutdeck-agent/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/sessions", listSessionsHandler(cfg))
		r.Post("/sessions", createSessionHandler(cfg))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", getSessionHandler(cfg))
			r.Delete("/", deleteSessionHandler(cfg))

			r.Post("/clips", addClipHandler(cfg))
			r.Patch("/clips/{clipID}", updateClipHandler(cfg))
			r.Delete("/clips/{clipID}", removeClipHandler(cfg))
			r.Delete("/selection/clips", removeSelectedClipsHandler(cfg))
			r.Post("/cut", cutHandler(cfg))

			r.Post("/tracks", addTrackHandler(cfg))
			r.Delete("/tracks/{index}", removeTrackHandler(cfg))

			r.Post("/selection", selectClipHandler(cfg))
			r.Delete("/selection", clearSelectionHandler(cfg))

			r.Post("/undo", undoHandler(cfg))
			r.Post("/redo", redoHandler(cfg))

			r.Post("/play", playHandler(cfg))
			r.Post("/pause", pauseHandler(cfg))
			r.Post("/stop", stopHandler(cfg))
			r.Post("/seek", seekHandler(cfg))

			r.Get("/frame", frameHandler(cfg))
			r.Get("/snap-points", snapPointsHandler(cfg))

			r.Post("/drafts", saveDraftHandler(cfg))
			r.Post("/export", exportHandler(cfg))
		})

		r.Get("/drafts", listDraftsHandler(cfg))
		r.Post("/drafts/{id}/load", loadDraftHandler(cfg))
		r.Delete("/drafts/{id}", deleteDraftHandler(cfg))

		r.Get("/materials", listMaterialsHandler(cfg))
		r.Put("/materials/{ref}", putMaterialHandler(cfg))
		r.Put("/materials/{ref}/tags", setMaterialTagsHandler(cfg))
		r.Delete("/materials/{ref}", deleteMaterialHandler(cfg))

		r.Get("/library", libraryHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(MediaAuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/media/{ref}/{kind}", mediaHandler(cfg))
		r.Head("/media/{ref}/{kind}", mediaHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if cfg.Sessions != nil {
			sessions := cfg.Sessions.List()
			resp.Sessions = len(sessions)
			for _, s := range sessions {
				resp.CacheBytes += s.Cache().Size()
			}
		}
		if resp.Sessions > 0 {
			resp.State = "editing"
		}
		if cfg.Media != nil {
			resp.CacheBytes += cfg.Media.Size()
		}
		if cfg.Library != nil {
			resp.LibraryItems = cfg.Library.Count()
		}

		if p := cfg.Prefetcher; p != nil {
			done, failed := p.Stats()
			resp.Prefetch = &PrefetchStatus{
				Running: p.IsRunning(),
				Paused:  p.IsPaused(),
				Pending: p.Pending(),
				Done:    done,
				Failed:  failed,
			}
			if p.IsPaused() {
				resp.State = "paused"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func libraryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := LibraryResponse{Items: []LibraryItemResponse{}}
		if cfg.Library == nil {
			WriteJSON(w, http.StatusOK, resp)
			return
		}

		favorites := make(map[string]bool)
		if cfg.Store != nil {
			materials, err := cfg.Store.ListMaterials(r.Context(), store.MaterialFilter{})
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "failed to list materials", "INTERNAL_ERROR")
				return
			}
			for _, m := range materials {
				favorites[m.Ref] = true
			}
		}

		resp.Root = cfg.Library.Root()
		if last := cfg.Library.LastScan(); !last.IsZero() {
			resp.LastScan = last.Format(time.RFC3339)
		}
		for _, it := range cfg.Library.Items() {
			resp.Items = append(resp.Items, LibraryItemToResponse(it, favorites[it.Ref]))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
