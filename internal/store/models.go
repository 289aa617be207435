package store

import (
	"errors"
	"strings"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

const (
	// MaxDrafts is how many drafts are kept; saving past it drops the oldest.
	MaxDrafts = 10

	DefaultCategory = "default"

	ConfigAuthToken = "auth_token"
)

var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrInvalidDraft     = errors.New("invalid draft")
	ErrMaterialNotFound = errors.New("material not found")
)

// Draft is a saved edit state that can be loaded back into a session.
type Draft struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Tracks          timeline.Tracks `json:"tracks"`
	CurrentTime     float64         `json:"current_time"`
	ContentDuration float64         `json:"content_duration"`
	ClipCount       int             `json:"clip_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DraftSummary is a draft without its tracks, for listings.
type DraftSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CurrentTime     float64   `json:"current_time"`
	ContentDuration float64   `json:"content_duration"`
	ClipCount       int       `json:"clip_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Material is a source the user collected for later editing.
type Material struct {
	Ref      string    `json:"ref"`
	Title    string    `json:"title"`
	Owner    string    `json:"owner,omitempty"`
	Duration float64   `json:"duration"`
	Category string    `json:"category"`
	Tags     []string  `json:"tags"`
	Notes    string    `json:"notes,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

func (m *Material) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type MaterialSort string

const (
	SortNewest MaterialSort = "newest"
	SortOldest MaterialSort = "oldest"
)

// MaterialFilter narrows a material listing. Empty fields match everything.
// Search matches title or owner, case-insensitively.
type MaterialFilter struct {
	Category string
	Tag      string
	Search   string
	Sort     MaterialSort
}

// NormalizeTags trims, drops empties and removes duplicates, keeping the
// first occurrence order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
