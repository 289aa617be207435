package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/media"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/store"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

// errorStatus maps domain errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, timeline.ErrClipNotFound):
		return http.StatusNotFound, "CLIP_NOT_FOUND"
	case errors.Is(err, timeline.ErrTrackNotFound):
		return http.StatusNotFound, "TRACK_NOT_FOUND"
	case errors.Is(err, timeline.ErrCannotRemovePrimaryTrack):
		return http.StatusUnprocessableEntity, "CANNOT_REMOVE_PRIMARY_TRACK"
	case errors.Is(err, timeline.ErrInvalidInterval):
		return http.StatusUnprocessableEntity, "INVALID_INTERVAL"
	case errors.Is(err, timeline.ErrSplitOutOfRange):
		return http.StatusUnprocessableEntity, "SPLIT_OUT_OF_RANGE"
	case errors.Is(err, timeline.ErrSplitTooCloseToEdge):
		return http.StatusUnprocessableEntity, "SPLIT_TOO_CLOSE_TO_EDGE"
	case errors.Is(err, editor.ErrNothingSelected):
		return http.StatusUnprocessableEntity, "NOTHING_SELECTED"
	case errors.Is(err, editor.ErrNoClipAtPlayhead):
		return http.StatusUnprocessableEntity, "NO_CLIP_AT_PLAYHEAD"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "SESSION_CLOSED"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, store.ErrDraftNotFound):
		return http.StatusNotFound, "DRAFT_NOT_FOUND"
	case errors.Is(err, store.ErrInvalidDraft):
		return http.StatusUnprocessableEntity, "INVALID_DRAFT"
	case errors.Is(err, store.ErrMaterialNotFound):
		return http.StatusNotFound, "MATERIAL_NOT_FOUND"
	case errors.Is(err, media.ErrSourceUnavailable):
		return http.StatusNotFound, "SOURCE_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	var fe *media.FetchError
	if errors.As(err, &fe) {
		return http.StatusBadGateway, "FETCH_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// WriteDomainError writes err with the status its kind maps to. Edit
// failures carry their user-facing reason as the message.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	WriteError(w, status, editor.Reason(err), code)
}
