package playback

import (
	"errors"
	"testing"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    ByteRange
		wantOK  bool
		wantErr error
	}{
		{"no header", "", 1000, ByteRange{}, false, nil},
		{"whole payload", "bytes=0-999", 1000, ByteRange{0, 999}, true, nil},
		{"open ended", "bytes=500-", 1000, ByteRange{500, 999}, true, nil},
		{"tail", "bytes=-500", 1000, ByteRange{500, 999}, true, nil},
		{"one byte", "bytes=0-0", 1000, ByteRange{0, 0}, true, nil},
		{"last clamped to size", "bytes=0-2000", 1000, ByteRange{0, 999}, true, nil},
		{"tail longer than payload", "bytes=-2000", 500, ByteRange{0, 499}, true, nil},
		{"first span only", "bytes=0-99, 200-299", 1000, ByteRange{0, 99}, true, nil},
		{"spaces around span", "bytes= 10-19", 1000, ByteRange{10, 19}, true, nil},

		{"first at size", "bytes=1000-", 1000, ByteRange{}, false, ErrUnsatisfiable},
		{"past the end", "bytes=1500-2000", 1000, ByteRange{}, false, ErrUnsatisfiable},
		{"reversed", "bytes=20-10", 1000, ByteRange{}, false, ErrUnsatisfiable},
		{"empty payload", "bytes=0-", 0, ByteRange{}, false, ErrUnsatisfiable},
		{"tail of empty payload", "bytes=-10", 0, ByteRange{}, false, ErrUnsatisfiable},
		{"no unit", "invalid", 1000, ByteRange{}, false, ErrInvalidRange},
		{"wrong unit", "chars=0-100", 1000, ByteRange{}, false, ErrInvalidRange},
		{"no dash", "bytes=100", 1000, ByteRange{}, false, ErrInvalidRange},
		{"bad first", "bytes=abc-100", 1000, ByteRange{}, false, ErrInvalidRange},
		{"bad last", "bytes=0-abc", 1000, ByteRange{}, false, ErrInvalidRange},
		{"zero tail", "bytes=-0", 1000, ByteRange{}, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseByteRange(tt.header, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseByteRange() error = %v, want %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ParseByteRange() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseByteRange() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestByteRange_LenAndHeader(t *testing.T) {
	tests := []struct {
		span  ByteRange
		total int64
		len   int64
		hdr   string
	}{
		{ByteRange{0, 99}, 1000, 100, "bytes 0-99/1000"},
		{ByteRange{500, 999}, 1000, 500, "bytes 500-999/1000"},
		{ByteRange{0, 0}, 1, 1, "bytes 0-0/1"},
	}

	for _, tt := range tests {
		if got := tt.span.Len(); got != tt.len {
			t.Errorf("%+v.Len() = %d, want %d", tt.span, got, tt.len)
		}
		if got := tt.span.Header(tt.total); got != tt.hdr {
			t.Errorf("%+v.Header(%d) = %q, want %q", tt.span, tt.total, got, tt.hdr)
		}
	}
}
