// Package export turns a timeline into files other tools can consume: an
// edit decision list, an ffmpeg script and a JSON manifest.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

const (
	DefaultFrameRate   = 30.0
	DefaultProjectName = "cutdeck_export"

	maxProjectNameLen = 120
	maxClipNameLen    = 160

	downloadSuffix = "_video.mp4"
)

// MediaLocator maps a source ref to a path an external tool can open.
type MediaLocator func(sourceRef string) (path string, ok bool)

// LocalLocator locates refs through pathFor and requires the file to exist.
// Refs pathFor rejects are named after the file a browser download of the
// source produces, relative to the export directory.
func LocalLocator(pathFor func(sourceRef string) (string, error)) MediaLocator {
	return func(sourceRef string) (string, bool) {
		if pathFor != nil {
			if path, err := pathFor(sourceRef); err == nil {
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					return "", false
				}
				return path, true
			}
		}
		name := SanitizeName(sourceRef, maxClipNameLen)
		if name == "" {
			return "", false
		}
		return name + downloadSuffix, true
	}
}

// ResolveClips flattens tracks into clips ordered by track, then by timeline
// start. Clips whose media cannot be located are reported by id.
func ResolveClips(tracks timeline.Tracks, locate MediaLocator) ([]ResolvedClip, []string) {
	resolved := make([]ResolvedClip, 0, tracks.ClipCount())
	unresolved := make([]string, 0)

	for trackIndex, track := range tracks.Video {
		sorted := append(timeline.Track(nil), track...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimelineStart < sorted[j].TimelineStart })

		for _, c := range sorted {
			path, ok := locate(c.SourceRef)
			if !ok {
				unresolved = append(unresolved, c.ID)
				continue
			}
			name := SanitizeName(c.Title, maxClipNameLen)
			if name == "" {
				name = SanitizeName(c.SourceRef, maxClipNameLen)
			}
			resolved = append(resolved, ResolvedClip{
				ClipID:        c.ID,
				ClipName:      name,
				SourceRef:     c.SourceRef,
				MediaPath:     path,
				Track:         trackIndex,
				StartMs:       toMs(c.SourceStart),
				EndMs:         toMs(c.SourceEnd),
				RecordStartMs: toMs(c.TimelineStart),
				RecordMs:      toMs(c.DisplayDuration),
			})
		}
	}
	return resolved, unresolved
}

func toMs(seconds float64) int {
	return int(math.Round(seconds * 1000))
}

// Render produces the file contents for format.
func Render(format Format, clips []ResolvedClip, title string, frameRate float64, now time.Time) (string, error) {
	switch format {
	case FormatEDL:
		return GenerateEDL(clips, title, frameRate), nil
	case FormatFFmpeg:
		return GenerateFFmpegScript(clips, title, now), nil
	case FormatJSON:
		return GenerateJSON(clips, title, frameRate, now)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// Write validates req, renders the clips and writes the result into
// req.OutputDir named after the sanitized project name.
func Write(req ExportRequest, clips []ResolvedClip, unresolved []string) (ExportResponse, error) {
	format, err := ParseFormat(strings.ToLower(req.Format))
	if err != nil {
		return ExportResponse{}, err
	}
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return ExportResponse{}, err
	}
	if len(clips) == 0 {
		return ExportResponse{}, fmt.Errorf("no clips to export")
	}

	projectName := SanitizeName(req.ProjectName, maxProjectNameLen)
	if projectName == "" {
		projectName = DefaultProjectName
	}
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	content, err := Render(format, clips, projectName, frameRate, time.Now())
	if err != nil {
		return ExportResponse{}, err
	}

	mode := os.FileMode(0o644)
	if format == FormatFFmpeg {
		mode = 0o755
	}
	outputPath := filepath.Join(req.OutputDir, projectName+"."+format.Extension())
	if err := os.WriteFile(outputPath, []byte(content), mode); err != nil {
		return ExportResponse{}, fmt.Errorf("failed to write export file: %w", err)
	}

	if unresolved == nil {
		unresolved = []string{}
	}
	return ExportResponse{
		Status:          "ok",
		Format:          string(format),
		OutputPath:      outputPath,
		ClipCount:       len(clips),
		UnresolvedClips: unresolved,
	}, nil
}
