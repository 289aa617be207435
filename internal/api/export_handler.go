package api

import (
	"net/http"
	"strings"

	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/export"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

func exportLocator(cfg ServerConfig) export.MediaLocator {
	if cfg.Files == nil {
		return export.LocalLocator(nil)
	}
	return export.LocalLocator(cfg.Files.PathFor)
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(cfg, w, r)
		if !ok {
			return
		}
		var req export.ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if _, err := export.ParseFormat(strings.ToLower(req.Format)); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if req.ProjectName == "" {
			req.ProjectName = s.Title()
		}

		var tracks timeline.Tracks
		if err := s.Do(func(c *editor.Core) { tracks = c.Tracks() }); err != nil {
			WriteDomainError(w, err)
			return
		}
		if tracks.ClipCount() == 0 {
			WriteError(w, http.StatusBadRequest, "session has no clips", "BAD_REQUEST")
			return
		}

		clips, unresolved := export.ResolveClips(tracks, exportLocator(cfg))
		if len(clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no clips could be resolved", "UNRESOLVABLE_CLIPS")
			return
		}

		resp, err := export.Write(req, clips, unresolved)
		if err != nil {
			cfg.Logger.Error("export failed", "error", err, "session_id", s.ID)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}
		cfg.Logger.Info("session exported",
			"session_id", s.ID,
			"format", resp.Format,
			"clips", resp.ClipCount,
			"unresolved", len(resp.UnresolvedClips),
		)
		WriteJSON(w, http.StatusOK, resp)
	}
}
