package export

import (
	"fmt"
	"math"
	"strings"
)

// timebase converts milliseconds to EDL timecode. Drop-frame timebases use
// ';' before the frame field as editors expect.
type timebase struct {
	fps  int
	drop bool
}

func newTimebase(frameRate float64) timebase {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}
	return timebase{
		fps:  fps,
		drop: math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01,
	}
}

func (tb timebase) fcm() string {
	if tb.drop {
		return "FCM: DROP FRAME"
	}
	return "FCM: NON-DROP FRAME"
}

func (tb timebase) timecode(ms int) string {
	sep := ":"
	if tb.drop {
		sep = ";"
	}
	return msToTimecode(ms, tb.fps, sep)
}

// GenerateEDL writes a CMX3600 style event list. The primary track is the V
// channel and overlay tracks are V2, V3 and so on; a clip whose record length
// differs from its source length gets a STRETCH comment.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	tb := newTimebase(frameRate)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n%s\n\n", title, tb.fcm())

	for i, clip := range clips {
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, "AX", trackChannel(clip.Track),
			tb.timecode(clip.StartMs), tb.timecode(clip.EndMs),
			tb.timecode(clip.RecordStartMs), tb.timecode(clip.RecordStartMs+clip.RecordMs))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", clip.ClipName)
		fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", clip.MediaPath)
		if clip.RecordMs != clip.SourceMs() {
			fmt.Fprintf(&b, "* STRETCH:  source %s over %s\n", tb.timecode(clip.SourceMs()), tb.timecode(clip.RecordMs))
		}
	}
	return b.String()
}

func trackChannel(track int) string {
	if track <= 0 {
		return "V"
	}
	return fmt.Sprintf("V%d", track+1)
}

func msToTimecode(ms, fps int, frameSep string) string {
	frames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", secs/3600, secs/60%60, secs%60, frameSep, frames%fps)
}
