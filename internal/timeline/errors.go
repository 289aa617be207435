package timeline

import "errors"

var (
	ErrClipNotFound             = errors.New("clip not found")
	ErrTrackNotFound            = errors.New("track not found")
	ErrCannotRemovePrimaryTrack = errors.New("cannot remove primary track")
	ErrInvalidInterval          = errors.New("source end must be after source start")
	ErrSplitOutOfRange          = errors.New("split point is outside the clip")
	ErrSplitTooCloseToEdge      = errors.New("split point is too close to the clip edge")
)
