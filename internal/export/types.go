package export

import "fmt"

type Format string

const (
	FormatEDL    Format = "edl"
	FormatFFmpeg Format = "ffmpeg"
	FormatJSON   Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatEDL, FormatFFmpeg, FormatJSON:
		return f, nil
	case "":
		return FormatEDL, nil
	default:
		return "", fmt.Errorf("format must be one of edl, ffmpeg, json")
	}
}

// Extension is the file extension written for f.
func (f Format) Extension() string {
	switch f {
	case FormatFFmpeg:
		return "sh"
	default:
		return string(f)
	}
}

type ExportRequest struct {
	ProjectName string  `json:"project_name"`
	Format      string  `json:"format"`
	FrameRate   float64 `json:"frame_rate"`
	OutputDir   string  `json:"output_dir"`
}

// ResolvedClip is one timeline clip with its media location resolved. Source
// times are in the clip's media; record times are on the timeline.
type ResolvedClip struct {
	ClipID        string
	ClipName      string
	SourceRef     string
	MediaPath     string
	Track         int
	StartMs       int
	EndMs         int
	RecordStartMs int
	RecordMs      int
}

func (c ResolvedClip) SourceMs() int {
	return c.EndMs - c.StartMs
}

type ExportResponse struct {
	Status          string   `json:"status"`
	Format          string   `json:"format"`
	OutputPath      string   `json:"output_path"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips"`
}
