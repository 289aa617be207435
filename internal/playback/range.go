package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive span of a media payload.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Len() int64 {
	return b.Last - b.First + 1
}

// Header is the Content-Range value for b within a payload of total bytes.
func (b ByteRange) Header(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, total)
}

// ParseByteRange reads the first span of a Range header against a payload of
// size bytes. ok is false when no range was requested. Video elements only
// ever ask for one span, so later spans are ignored.
func ParseByteRange(header string, size int64) (b ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}
	spec, _, _ = strings.Cut(spec, ",")
	from, to, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}

	if from == "" {
		// "-n" is the last n bytes.
		n, err := parseOffset(to)
		if err != nil || n == 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		if size == 0 {
			return ByteRange{}, false, ErrUnsatisfiable
		}
		return ByteRange{First: max(size-n, 0), Last: size - 1}, true, nil
	}

	first, err := parseOffset(from)
	if err != nil {
		return ByteRange{}, false, ErrInvalidRange
	}
	last := size - 1
	if to != "" {
		if last, err = parseOffset(to); err != nil {
			return ByteRange{}, false, ErrInvalidRange
		}
	}
	if first >= size || first > last {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	return ByteRange{First: first, Last: min(last, size-1)}, true, nil
}

func parseOffset(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidRange
	}
	return n, nil
}
