package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/store"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

func saveDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var req SaveDraftRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		title := req.Title
		if title == "" {
			title = s.Title()
		}

		var tracks timeline.Tracks
		var currentTime float64
		if err := s.Do(func(c *editor.Core) {
			tracks = c.Tracks()
			currentTime = c.CurrentTime()
		}); err != nil {
			WriteDomainError(w, err)
			return
		}

		draft, err := cfg.Store.SaveDraft(r.Context(), title, tracks, currentTime)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, DraftToResponse(&store.DraftSummary{
			ID:              draft.ID,
			Title:           draft.Title,
			CurrentTime:     draft.CurrentTime,
			ContentDuration: draft.ContentDuration,
			ClipCount:       draft.ClipCount,
			CreatedAt:       draft.CreatedAt,
		}))
	}
}

func listDraftsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drafts, err := cfg.Store.ListDrafts(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list drafts", "INTERNAL_ERROR")
			return
		}

		resp := DraftsResponse{Drafts: make([]DraftResponse, len(drafts))}
		for i, d := range drafts {
			resp.Drafts[i] = DraftToResponse(d)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// loadDraftHandler opens the draft in a new session and answers with the
// session's snapshot.
func loadDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "draft id required", "BAD_REQUEST")
			return
		}

		draft, err := cfg.Store.LoadDraft(r.Context(), id)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		s := cfg.Sessions.Create(draft.Title)
		if err := s.Load(draft.Tracks, draft.CurrentTime); err != nil {
			cfg.Sessions.Close(s.ID)
			WriteDomainError(w, err)
			return
		}
		snap, err := s.Snapshot()
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, snap)
	}
}

func deleteDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Store.DeleteDraft(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrDraftNotFound) {
			WriteError(w, http.StatusNotFound, "draft not found", "DRAFT_NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
