package export

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Manifest struct {
	Title      string          `json:"title"`
	ExportedAt time.Time       `json:"exported_at"`
	FrameRate  float64         `json:"frame_rate"`
	Duration   float64         `json:"duration"`
	Clips      []ManifestEntry `json:"clips"`
}

// ManifestEntry keeps the clip field names used by the editor's own model.
type ManifestEntry struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	SourceRef       string  `json:"source_ref"`
	MediaPath       string  `json:"media_path"`
	Track           int     `json:"track"`
	SourceStart     float64 `json:"source_start"`
	SourceEnd       float64 `json:"source_end"`
	TimelineStart   float64 `json:"timeline_start"`
	DisplayDuration float64 `json:"display_duration"`
}

func GenerateJSON(clips []ResolvedClip, title string, frameRate float64, exportedAt time.Time) (string, error) {
	m := Manifest{
		Title:      title,
		ExportedAt: exportedAt.UTC(),
		FrameRate:  frameRate,
		Clips:      make([]ManifestEntry, 0, len(clips)),
	}
	for _, c := range clips {
		end := float64(c.RecordStartMs+c.RecordMs) / 1000
		if end > m.Duration {
			m.Duration = end
		}
		m.Clips = append(m.Clips, ManifestEntry{
			ID:              c.ClipID,
			Title:           c.ClipName,
			SourceRef:       c.SourceRef,
			MediaPath:       c.MediaPath,
			Track:           c.Track,
			SourceStart:     float64(c.StartMs) / 1000,
			SourceEnd:       float64(c.EndMs) / 1000,
			TimelineStart:   float64(c.RecordStartMs) / 1000,
			DisplayDuration: float64(c.RecordMs) / 1000,
		})
	}

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
