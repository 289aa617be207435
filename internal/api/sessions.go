package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

// lookupSession resolves the {id} URL parameter, writing a 404 when there is
// no such session.
func lookupSession(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "session id required", "BAD_REQUEST")
		return nil, false
	}
	s, ok := cfg.Sessions.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		return nil, false
	}
	return s, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := cfg.Sessions.List()
		resp := SessionsResponse{Sessions: make([]SessionSummaryResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToSummary(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}

		s := cfg.Sessions.Create(req.Title)
		snap, err := s.Snapshot()
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, snap)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		snap, err := s.Snapshot()
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Sessions.Close(chi.URLParam(r, "id"))
		if errors.Is(err, session.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Warn("session closed with errors", "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var req AddClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SourceRef == "" {
			WriteError(w, http.StatusBadRequest, "source_ref is required", "BAD_REQUEST")
			return
		}

		opts := editor.AddOptions{
			ClipOptions: timeline.ClipOptions{
				Title:           req.Title,
				DisplayDuration: req.DisplayDuration,
				Transform:       req.Transform,
				Color:           req.Color,
				StretchMode:     req.StretchMode,
			},
			TimelineStart: req.TimelineStart,
		}

		var clip timeline.Clip
		var editErr error
		if err := s.Do(func(c *editor.Core) {
			clip, editErr = c.AddClip(req.SourceRef, req.SourceStart, req.SourceEnd, req.Track, opts)
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		WriteJSON(w, http.StatusCreated, ClipResponse{Clip: clip, Track: req.Track})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		clipID := chi.URLParam(r, "clipID")

		var resp ClipResponse
		var editErr error
		if err := s.Do(func(c *editor.Core) {
			if ref, found := c.FindClipByID(clipID); found {
				resp.Track = ref.TrackIndex
			}
			resp.Clip, editErr = c.RemoveClip(clipID)
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// updateClipHandler applies a move and a property update as one undo step.
func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		clipID := chi.URLParam(r, "clipID")

		var req UpdateClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		update, changes := req.update()
		if !req.moves() && !changes {
			WriteError(w, http.StatusBadRequest, "nothing to update", "BAD_REQUEST")
			return
		}

		var resp ClipResponse
		var editErr error
		if err := s.Do(func(c *editor.Core) {
			ref, found := c.FindClipByID(clipID)
			if !found {
				editErr = fmt.Errorf("%w: %s", timeline.ErrClipNotFound, clipID)
				return
			}
			var move *editor.ClipMove
			if req.moves() {
				move = &editor.ClipMove{Start: ref.Clip.TimelineStart, Track: timeline.SameTrack}
				if req.TimelineStart != nil {
					move.Start = *req.TimelineStart
				}
				if req.Track != nil {
					move.Track = *req.Track
				}
			}
			if editErr = c.EditClip(clipID, move, update); editErr != nil {
				return
			}
			ref, _ = c.FindClipByID(clipID)
			resp = ClipResponse{Clip: ref.Clip, Track: ref.TrackIndex}
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func removeSelectedClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var deleted int
		var editErr error
		if err := s.Do(func(c *editor.Core) {
			deleted, editErr = c.RemoveSelectedClips()
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		WriteJSON(w, http.StatusOK, DeletedResponse{Deleted: deleted})
	}
}

func cutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var resp CutResponse
		var editErr error
		if err := s.Do(func(c *editor.Core) {
			resp.First, resp.Second, editErr = c.CutAtPlayhead()
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var index int
		if err := s.Do(func(c *editor.Core) { index = c.AddVideoTrack() }); err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TrackResponse{Index: index})
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "track index must be an integer", "BAD_REQUEST")
			return
		}

		var editErr error
		if err := s.Do(func(c *editor.Core) { editErr = c.RemoveVideoTrack(index) }); err != nil {
			WriteDomainError(w, err)
			return
		}
		if editErr != nil {
			WriteDomainError(w, editErr)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var req SelectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var resp SelectionResponse
		var missing bool
		if err := s.Do(func(c *editor.Core) {
			if req.ClipID != "" {
				if _, found := c.FindClipByID(req.ClipID); !found {
					missing = true
					return
				}
			}
			c.SelectClip(req.ClipID, req.Add)
			resp = selectionOf(c)
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if missing {
			WriteError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func clearSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		if err := s.Do(func(c *editor.Core) { c.ClearSelection() }); err != nil {
			WriteDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func selectionOf(c *editor.Core) SelectionResponse {
	return SelectionResponse{Selection: c.SelectedClipIDs(), SelectedClipID: c.SelectedClipID()}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyHandler(cfg, (*editor.Core).Undo, "nothing to undo")
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyHandler(cfg, (*editor.Core).Redo, "nothing to redo")
}

// historyHandler reports an exhausted stack as a no-op, not an error.
func historyHandler(cfg ServerConfig, step func(*editor.Core) bool, exhausted string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var resp HistoryResponse
		if err := s.Do(func(c *editor.Core) {
			resp.Applied = step(c)
			resp.CanUndo = c.CanUndo()
			resp.CanRedo = c.CanRedo()
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		if !resp.Applied {
			resp.Message = exhausted
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return transportHandler(cfg, (*editor.Core).Play)
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return transportHandler(cfg, (*editor.Core).Pause)
}

func stopHandler(cfg ServerConfig) http.HandlerFunc {
	return transportHandler(cfg, (*editor.Core).Stop)
}

func transportHandler(cfg ServerConfig, action func(*editor.Core)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var resp TransportResponse
		if err := s.Do(func(c *editor.Core) {
			action(c)
			resp = transportOf(c)
		}); err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func transportOf(c *editor.Core) TransportResponse {
	return TransportResponse{
		IsPlaying:       c.IsPlaying(),
		CurrentTime:     c.CurrentTime(),
		ContentDuration: c.ContentDuration(),
		TimeLabel:       clock.FormatTime(c.CurrentTime()),
	}
}

// seekHandler waits until every track has switched to the source under the
// new playhead before answering.
func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var req SeekRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.count() != 1 {
			WriteError(w, http.StatusBadRequest, "exactly one of time, delta or percent is required", "BAD_REQUEST")
			return
		}

		var target float64
		if err := s.Do(func(c *editor.Core) {
			switch {
			case req.Time != nil:
				target = *req.Time
			case req.Delta != nil:
				target = c.CurrentTime() + *req.Delta
			default:
				target = *req.Percent * c.ContentDuration()
			}
		}); err != nil {
			WriteDomainError(w, err)
			return
		}

		if err := s.SeekTo(r.Context(), target); err != nil {
			WriteDomainError(w, err)
			return
		}

		var resp TransportResponse
		if err := s.Do(func(c *editor.Core) { resp = transportOf(c) }); err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		layers, err := s.Frame()
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, FrameResponse{Layers: layers})
	}
}

func snapPointsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		exclude := r.URL.Query().Get("exclude")

		var points []timeline.SnapPoint
		if err := s.Do(func(c *editor.Core) { points = c.SnapPoints(exclude) }); err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SnapPointsResponse{Points: points})
	}
}
