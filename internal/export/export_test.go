package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

func testTracks() timeline.Tracks {
	return timeline.Tracks{
		Video: []timeline.Track{
			{
				{ID: "b", SourceRef: "file:b.mp4", Title: "Second", SourceStart: 2, SourceEnd: 5, TimelineStart: 4, DisplayDuration: 3},
				{ID: "a", SourceRef: "file:a.mp4", Title: "First", SourceStart: 0, SourceEnd: 4, TimelineStart: 0, DisplayDuration: 4},
			},
			{
				{ID: "o", SourceRef: "remote-1", SourceStart: 0, SourceEnd: 1.5, TimelineStart: 1, DisplayDuration: 3},
				{ID: "x", SourceRef: "gone", SourceStart: 0, SourceEnd: 1, TimelineStart: 5, DisplayDuration: 1},
			},
		},
	}
}

func testLocator(ref string) (string, bool) {
	switch {
	case strings.HasPrefix(ref, "file:"):
		return "/library/" + strings.TrimPrefix(ref, "file:"), true
	case ref == "gone":
		return "", false
	default:
		return ref + "_video.mp4", true
	}
}

func TestResolveClips(t *testing.T) {
	clips, unresolved := ResolveClips(testTracks(), testLocator)

	if len(unresolved) != 1 || unresolved[0] != "x" {
		t.Fatalf("unresolved = %v, want [x]", unresolved)
	}
	if len(clips) != 3 {
		t.Fatalf("len(clips) = %d, want 3", len(clips))
	}

	wantIDs := []string{"a", "b", "o"}
	for i, c := range clips {
		if c.ClipID != wantIDs[i] {
			t.Errorf("clips[%d].ClipID = %s, want %s", i, c.ClipID, wantIDs[i])
		}
	}

	b := clips[1]
	if b.MediaPath != "/library/b.mp4" || b.StartMs != 2000 || b.EndMs != 5000 || b.RecordStartMs != 4000 || b.RecordMs != 3000 {
		t.Errorf("clip b = %+v", b)
	}
	o := clips[2]
	if o.Track != 1 || o.ClipName != "remote-1" || o.MediaPath != "remote-1_video.mp4" {
		t.Errorf("clip o = %+v", o)
	}
}

func TestGenerateFFmpegScript(t *testing.T) {
	clips, _ := ResolveClips(testTracks(), testLocator)
	script := GenerateFFmpegScript(clips, "My Cut", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	wantLines := []string{
		"# My Cut",
		"# generated 2026-03-01T12:00:00Z",
		"ffmpeg -y -ss 00:00:00.000 -t 00:00:04.000 -i '/library/a.mp4' -c copy clip_001.mp4",
		"ffmpeg -y -ss 00:00:02.000 -t 00:00:03.000 -i '/library/b.mp4' -c copy clip_002.mp4",
		"echo \"file 'clip_002.mp4'\" >> filelist.txt",
		"ffmpeg -y -f concat -safe 0 -i filelist.txt -c copy 'My Cut_final.mp4'",
		"rm clip_001.mp4",
		"rm filelist.txt",
	}
	for _, line := range wantLines {
		if !strings.Contains(script, line+"\n") {
			t.Errorf("script missing line %q:\n%s", line, script)
		}
	}
	if strings.Contains(script, "remote-1") {
		t.Errorf("overlay clip in script:\n%s", script)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("shellQuote = %s", got)
	}
}

func TestFFmpegTime(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00.000"},
		{1500, "00:00:01.500"},
		{3_723_004, "01:02:03.004"},
		{-5, "00:00:00.000"},
	}
	for _, tc := range tests {
		if got := ffmpegTime(tc.ms); got != tc.want {
			t.Errorf("ffmpegTime(%d) = %s, want %s", tc.ms, got, tc.want)
		}
	}
}

func TestGenerateJSON(t *testing.T) {
	clips, _ := ResolveClips(testTracks(), testLocator)
	out, err := GenerateJSON(clips, "My Cut", 25, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("manifest does not parse: %v", err)
	}
	if m.Title != "My Cut" || m.FrameRate != 25 {
		t.Errorf("manifest header = %+v", m)
	}
	if m.Duration != 7 {
		t.Errorf("Duration = %v, want 7", m.Duration)
	}
	if len(m.Clips) != 3 {
		t.Fatalf("len(Clips) = %d, want 3", len(m.Clips))
	}
	o := m.Clips[2]
	if o.SourceEnd != 1.5 || o.TimelineStart != 1 || o.DisplayDuration != 3 || o.Track != 1 {
		t.Errorf("overlay entry = %+v", o)
	}
	if !strings.Contains(out, `"source_start"`) || !strings.Contains(out, `"display_duration"`) {
		t.Errorf("manifest field names changed:\n%s", out)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	clips, unresolved := ResolveClips(testTracks(), testLocator)

	tests := []struct {
		format string
		ext    string
		prefix string
	}{
		{"edl", ".edl", "TITLE: Trip (final)"},
		{"ffmpeg", ".sh", "#!/bin/sh"},
		{"JSON", ".json", "{"},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			resp, err := Write(ExportRequest{ProjectName: "Trip (final)", Format: tc.format, OutputDir: dir}, clips, unresolved)
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if resp.OutputPath != filepath.Join(dir, "Trip (final)"+tc.ext) {
				t.Errorf("OutputPath = %s", resp.OutputPath)
			}
			if resp.ClipCount != 3 || len(resp.UnresolvedClips) != 1 {
				t.Errorf("response = %+v", resp)
			}
			data, err := os.ReadFile(resp.OutputPath)
			if err != nil {
				t.Fatalf("read export: %v", err)
			}
			if !strings.HasPrefix(string(data), tc.prefix) {
				t.Errorf("export starts with %q, want %q", string(data[:min(len(data), 30)]), tc.prefix)
			}
		})
	}
}

func TestWrite_Rejects(t *testing.T) {
	dir := t.TempDir()
	clips, _ := ResolveClips(testTracks(), testLocator)

	if _, err := Write(ExportRequest{Format: "mov", OutputDir: dir}, clips, nil); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Write(ExportRequest{Format: "edl", OutputDir: filepath.Join(dir, "missing")}, clips, nil); err == nil {
		t.Error("expected error for missing output dir")
	}
	if _, err := Write(ExportRequest{Format: "edl", OutputDir: dir}, nil, nil); err == nil {
		t.Error("expected error for empty clip list")
	}
}

func TestWrite_DefaultProjectName(t *testing.T) {
	dir := t.TempDir()
	clips, _ := ResolveClips(testTracks(), testLocator)

	resp, err := Write(ExportRequest{ProjectName: "<>", Format: "edl", OutputDir: dir}, clips, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(resp.OutputPath) != "__.edl" {
		t.Errorf("OutputPath = %s", resp.OutputPath)
	}

	resp, err = Write(ExportRequest{ProjectName: "\n", Format: "", OutputDir: dir}, clips, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(resp.OutputPath) != DefaultProjectName+".edl" {
		t.Errorf("OutputPath = %s", resp.OutputPath)
	}
	if resp.UnresolvedClips == nil {
		t.Error("UnresolvedClips is nil, want empty slice")
	}
}

func TestLocalLocator(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	pathFor := func(ref string) (string, error) {
		rel, ok := strings.CutPrefix(ref, "file:")
		if !ok {
			return "", os.ErrInvalid
		}
		return filepath.Join(dir, rel), nil
	}
	locate := LocalLocator(pathFor)

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"file:a.mp4", filepath.Join(dir, "a.mp4"), true},
		{"file:missing.mp4", "", false},
		{"BV1xx411c7mD", "BV1xx411c7mD_video.mp4", true},
		{"a/b", "a_b_video.mp4", true},
	}
	for _, tt := range tests {
		got, ok := locate(tt.ref)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("locate(%q) = %q, %v, want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}

	if _, ok := LocalLocator(nil)(""); ok {
		t.Error("locate(\"\") ok = true, want false")
	}
}
