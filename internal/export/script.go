package export

import (
	"fmt"
	"strings"
	"time"
)

// GenerateFFmpegScript writes a shell script that trims every primary track
// clip from its media with stream copy, concatenates the parts and removes
// the intermediates. Clips on overlay tracks are not part of the output.
func GenerateFFmpegScript(clips []ResolvedClip, title string, generatedAt time.Time) string {
	var primary []ResolvedClip
	for _, c := range clips {
		if c.Track == 0 {
			primary = append(primary, c)
		}
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "# generated %s\n", generatedAt.UTC().Format(time.RFC3339))
	b.WriteString("set -e\n\n")

	for i, c := range primary {
		fmt.Fprintf(&b, "ffmpeg -y -ss %s -t %s -i %s -c copy %s\n",
			ffmpegTime(c.StartMs), ffmpegTime(c.SourceMs()), shellQuote(c.MediaPath), partName(i))
	}

	b.WriteString("\n: > filelist.txt\n")
	for i := range primary {
		fmt.Fprintf(&b, "echo \"file '%s'\" >> filelist.txt\n", partName(i))
	}

	fmt.Fprintf(&b, "\nffmpeg -y -f concat -safe 0 -i filelist.txt -c copy %s\n\n", shellQuote(title+"_final.mp4"))

	for i := range primary {
		fmt.Fprintf(&b, "rm %s\n", partName(i))
	}
	b.WriteString("rm filelist.txt\n")
	return b.String()
}

func partName(i int) string {
	return fmt.Sprintf("clip_%03d.mp4", i+1)
}

// ffmpegTime renders milliseconds as HH:MM:SS.mmm.
func ffmpegTime(ms int) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
