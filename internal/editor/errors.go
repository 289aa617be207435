package editor

import (
	"errors"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var (
	ErrNothingSelected  = errors.New("no clips selected")
	ErrNoClipAtPlayhead = errors.New("no clip at playhead")
)

// EditError is a failed edit with a reason suitable for showing to the user.
type EditError struct {
	Op     string
	Reason string
	Err    error
}

func (e *EditError) Error() string {
	return e.Op + ": " + e.Reason
}

func (e *EditError) Unwrap() error {
	return e.Err
}

// Reason returns the user-facing text for err.
func Reason(err error) string {
	var ee *EditError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func editError(op string, err error) error {
	return &EditError{Op: op, Reason: reasonFor(err), Err: err}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, timeline.ErrClipNotFound):
		return "the clip no longer exists"
	case errors.Is(err, timeline.ErrTrackNotFound):
		return "the track does not exist"
	case errors.Is(err, timeline.ErrCannotRemovePrimaryTrack):
		return "the main track cannot be removed"
	case errors.Is(err, timeline.ErrInvalidInterval):
		return "the clip must end after it starts"
	case errors.Is(err, timeline.ErrSplitOutOfRange):
		return "the cut point is not inside the clip"
	case errors.Is(err, timeline.ErrSplitTooCloseToEdge):
		return "the cut point is too close to the clip edge"
	case errors.Is(err, ErrNothingSelected):
		return "no clips are selected"
	case errors.Is(err, ErrNoClipAtPlayhead):
		return "there is no clip at the playhead to cut"
	default:
		return err.Error()
	}
}
