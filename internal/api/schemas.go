package api

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cutdeck/cutdeck-agent/internal/compositor"
	"github.com/cutdeck/cutdeck-agent/internal/library"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/store"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string          `json:"state"`
	Sessions     int             `json:"sessions"`
	LibraryItems int             `json:"library_items"`
	CacheBytes   int64           `json:"cache_bytes"`
	Prefetch     *PrefetchStatus `json:"prefetch,omitempty"`
}

type PrefetchStatus struct {
	Running bool  `json:"running"`
	Paused  bool  `json:"paused"`
	Pending int   `json:"pending"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type SessionSummaryResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

type SessionsResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
}

func SessionToSummary(s *session.Session) SessionSummaryResponse {
	return SessionSummaryResponse{
		ID:        s.ID,
		Title:     s.Title(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

type AddClipRequest struct {
	SourceRef       string               `json:"source_ref"`
	SourceStart     float64              `json:"source_start"`
	SourceEnd       float64              `json:"source_end"`
	Track           int                  `json:"track"`
	Title           string               `json:"title,omitempty"`
	DisplayDuration float64              `json:"display_duration,omitempty"`
	TimelineStart   *float64             `json:"timeline_start,omitempty"`
	Transform       *timeline.Transform  `json:"transform,omitempty"`
	Color           *timeline.Color      `json:"color,omitempty"`
	StretchMode     timeline.StretchMode `json:"stretch_mode,omitempty"`
}

// UpdateClipRequest moves a clip when TimelineStart or Track is set and
// changes its properties when any of the other fields is.
type UpdateClipRequest struct {
	TimelineStart   *float64              `json:"timeline_start,omitempty"`
	Track           *int                  `json:"track,omitempty"`
	Title           *string               `json:"title,omitempty"`
	DisplayDuration *float64              `json:"display_duration,omitempty"`
	Transform       *timeline.Transform   `json:"transform,omitempty"`
	Color           *timeline.Color       `json:"color,omitempty"`
	StretchMode     *timeline.StretchMode `json:"stretch_mode,omitempty"`
}

func (r UpdateClipRequest) moves() bool {
	return r.TimelineStart != nil || r.Track != nil
}

func (r UpdateClipRequest) update() (timeline.ClipUpdate, bool) {
	u := timeline.ClipUpdate{
		Title:           r.Title,
		DisplayDuration: r.DisplayDuration,
		Transform:       r.Transform,
		Color:           r.Color,
		StretchMode:     r.StretchMode,
	}
	return u, !u.IsZero()
}

type ClipResponse struct {
	Clip  timeline.Clip `json:"clip"`
	Track int           `json:"track"`
}

type DeletedResponse struct {
	Deleted int `json:"deleted"`
}

type CutResponse struct {
	First  timeline.Clip `json:"first"`
	Second timeline.Clip `json:"second"`
}

type TrackResponse struct {
	Index int `json:"index"`
}

type SelectRequest struct {
	ClipID string `json:"clip_id"`
	Add    bool   `json:"add"`
}

type SelectionResponse struct {
	Selection      []string `json:"selection"`
	SelectedClipID string   `json:"selected_clip_id,omitempty"`
}

type HistoryResponse struct {
	Applied bool   `json:"applied"`
	CanUndo bool   `json:"can_undo"`
	CanRedo bool   `json:"can_redo"`
	Message string `json:"message,omitempty"`
}

// SeekRequest takes exactly one of an absolute time, a relative delta or a
// fraction of the content duration.
type SeekRequest struct {
	Time    *float64 `json:"time,omitempty"`
	Delta   *float64 `json:"delta,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
}

func (r SeekRequest) count() int {
	n := 0
	for _, v := range []*float64{r.Time, r.Delta, r.Percent} {
		if v != nil {
			n++
		}
	}
	return n
}

type TransportResponse struct {
	IsPlaying       bool    `json:"is_playing"`
	CurrentTime     float64 `json:"current_time"`
	ContentDuration float64 `json:"content_duration"`
	TimeLabel       string  `json:"time_label"`
}

type FrameResponse struct {
	Layers []compositor.LayerState `json:"layers"`
}

type SnapPointsResponse struct {
	Points []timeline.SnapPoint `json:"points"`
}

type SaveDraftRequest struct {
	Title string `json:"title"`
}

type DraftResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	CurrentTime     float64 `json:"current_time"`
	ContentDuration float64 `json:"content_duration"`
	ClipCount       int     `json:"clip_count"`
	CreatedAt       string  `json:"created_at"`
}

type DraftsResponse struct {
	Drafts []DraftResponse `json:"drafts"`
}

func DraftToResponse(d *store.DraftSummary) DraftResponse {
	return DraftResponse{
		ID:              d.ID,
		Title:           d.Title,
		CurrentTime:     d.CurrentTime,
		ContentDuration: d.ContentDuration,
		ClipCount:       d.ClipCount,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
}

type MaterialRequest struct {
	Title    string   `json:"title"`
	Owner    string   `json:"owner"`
	Duration float64  `json:"duration"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Notes    string   `json:"notes"`
}

type TagsRequest struct {
	Tags []string `json:"tags"`
}

type MaterialResponse struct {
	Ref      string   `json:"ref"`
	Title    string   `json:"title"`
	Owner    string   `json:"owner,omitempty"`
	Duration float64  `json:"duration"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Notes    string   `json:"notes,omitempty"`
	AddedAt  string   `json:"added_at"`
}

type MaterialsResponse struct {
	Materials  []MaterialResponse `json:"materials"`
	Categories []string           `json:"categories"`
}

func MaterialToResponse(m *store.Material) MaterialResponse {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return MaterialResponse{
		Ref:      m.Ref,
		Title:    m.Title,
		Owner:    m.Owner,
		Duration: m.Duration,
		Category: m.Category,
		Tags:     tags,
		Notes:    m.Notes,
		AddedAt:  m.AddedAt.Format(time.RFC3339),
	}
}

type LibraryItemResponse struct {
	Ref      string `json:"ref"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Size     int64  `json:"size"`
	ModTime  string `json:"mod_time"`
	Favorite bool   `json:"favorite"`
}

type LibraryResponse struct {
	Root     string                `json:"root,omitempty"`
	LastScan string                `json:"last_scan,omitempty"`
	Items    []LibraryItemResponse `json:"items"`
}

func LibraryItemToResponse(it library.Item, favorite bool) LibraryItemResponse {
	return LibraryItemResponse{
		Ref:      it.Ref,
		Path:     it.Path,
		Title:    it.Title,
		Artist:   it.Artist,
		Size:     it.Size,
		ModTime:  it.ModTime.Format(time.RFC3339),
		Favorite: favorite,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
