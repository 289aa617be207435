package timeline

import "sort"

// PrimaryTrack is the index of the full-frame, append-only video track.
const PrimaryTrack = 0

// Track holds clips ordered by insertion. Gaps between clips are allowed;
// overlap is avoided by the editing operations but not rejected here.
type Track []Clip

type Tracks struct {
	Video []Track `json:"video"`
	Audio []Track `json:"audio"`
}

// CreateEmptyTracks returns one empty primary video track and one empty audio track.
func CreateEmptyTracks() Tracks {
	return Tracks{
		Video: []Track{{}},
		Audio: []Track{{}},
	}
}

// Clone returns a deep copy that shares no memory with t.
func (t Tracks) Clone() Tracks {
	return Tracks{
		Video: cloneTrackList(t.Video),
		Audio: cloneTrackList(t.Audio),
	}
}

func cloneTrackList(list []Track) []Track {
	if list == nil {
		return nil
	}
	out := make([]Track, len(list))
	for i, track := range list {
		nt := make(Track, len(track))
		for j, c := range track {
			nt[j] = c.clone()
		}
		out[i] = nt
	}
	return out
}

// syncAudio keeps audio track 0 mirroring the primary video track.
func (t *Tracks) syncAudio() {
	primary := Track{}
	if len(t.Video) > 0 {
		primary = cloneTrackList([]Track{t.Video[PrimaryTrack]})[0]
	}
	if len(t.Audio) == 0 {
		t.Audio = []Track{primary}
		return
	}
	t.Audio[0] = primary
}

func (t *Tracks) ensureVideoTrack(index int) {
	for len(t.Video) <= index {
		t.Video = append(t.Video, Track{})
	}
}

// ClipRef locates a clip inside Tracks.
type ClipRef struct {
	Clip       Clip
	TrackIndex int
	ClipIndex  int
}

func (t Tracks) FindClipByID(id string) (ClipRef, bool) {
	for ti, track := range t.Video {
		for ci, c := range track {
			if c.ID == id {
				return ClipRef{Clip: c, TrackIndex: ti, ClipIndex: ci}, true
			}
		}
	}
	return ClipRef{}, false
}

// ClipAtTime returns the first clip on the track whose span contains at.
func (t Tracks) ClipAtTime(trackIndex int, at float64) (Clip, bool) {
	if trackIndex < 0 || trackIndex >= len(t.Video) {
		return Clip{}, false
	}
	for _, c := range t.Video[trackIndex] {
		if c.Contains(at) {
			return c, true
		}
	}
	return Clip{}, false
}

type ActiveClip struct {
	Clip       Clip    `json:"clip"`
	TrackIndex int     `json:"track_index"`
	SourceTime float64 `json:"source_time"`
}

// ActiveClipsAtTime returns at most one clip per track, in track order.
func (t Tracks) ActiveClipsAtTime(at float64) []ActiveClip {
	var active []ActiveClip
	for ti := range t.Video {
		if c, ok := t.ClipAtTime(ti, at); ok {
			active = append(active, ActiveClip{
				Clip:       c,
				TrackIndex: ti,
				SourceTime: c.SourceTimeAt(at),
			})
		}
	}
	return active
}

// ContentDuration is the largest clip end across all video tracks.
func (t Tracks) ContentDuration() float64 {
	var maxEnd float64
	for _, track := range t.Video {
		for _, c := range track {
			if end := c.End(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	return maxEnd
}

// TrackEnd is the end of the last clip on one track, 0 when empty.
func (t Tracks) TrackEnd(trackIndex int) float64 {
	if trackIndex < 0 || trackIndex >= len(t.Video) {
		return 0
	}
	var maxEnd float64
	for _, c := range t.Video[trackIndex] {
		if end := c.End(); end > maxEnd {
			maxEnd = end
		}
	}
	return maxEnd
}

// AllClips flattens the video tracks, track by track.
func (t Tracks) AllClips() []ClipRef {
	var out []ClipRef
	for ti, track := range t.Video {
		for ci, c := range track {
			out = append(out, ClipRef{Clip: c, TrackIndex: ti, ClipIndex: ci})
		}
	}
	return out
}

func (t Tracks) ClipCount() int {
	n := 0
	for _, track := range t.Video {
		n += len(track)
	}
	return n
}

type SnapKind string

const (
	SnapStart      SnapKind = "start"
	SnapClipStart  SnapKind = "clip_start"
	SnapClipEnd    SnapKind = "clip_end"
	SnapContentEnd SnapKind = "content_end"
)

type SnapPoint struct {
	Time   float64  `json:"time"`
	Kind   SnapKind `json:"kind"`
	ClipID string   `json:"clip_id,omitempty"`
}

// SnapPoints lists 0, every clip edge except those of excludeClipID, and the
// content end, sorted by time.
func (t Tracks) SnapPoints(excludeClipID string) []SnapPoint {
	points := []SnapPoint{{Time: 0, Kind: SnapStart}}
	for _, track := range t.Video {
		for _, c := range track {
			if excludeClipID != "" && c.ID == excludeClipID {
				continue
			}
			points = append(points,
				SnapPoint{Time: c.TimelineStart, Kind: SnapClipStart, ClipID: c.ID},
				SnapPoint{Time: c.End(), Kind: SnapClipEnd, ClipID: c.ID},
			)
		}
	}
	if end := t.ContentDuration(); end > 0 {
		points = append(points, SnapPoint{Time: end, Kind: SnapContentEnd})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	return points
}
