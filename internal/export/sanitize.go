package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// ErrOutputDir is wrapped by every ValidateOutputDir failure.
var ErrOutputDir = errors.New("invalid output_dir")

// SanitizeName turns a clip title, source ref or project name into something
// safe for a file name and an EDL comment. Control characters are dropped,
// other unsafe runes become '_', and the result is cut to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(nameRune, s))
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func nameRune(r rune) rune {
	switch {
	case unicode.IsControl(r):
		return -1
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return r
	case strings.ContainsRune(" -_.,()", r):
		return r
	default:
		return '_'
	}
}

// ValidateOutputDir accepts an existing directory given as a clean absolute
// path.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrOutputDir)
	}
	if slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), "..") {
		return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrOutputDir)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: output_dir must be absolute", ErrOutputDir)
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: output_dir must be clean path", ErrOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: output_dir does not exist", ErrOutputDir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output_dir is not a directory", ErrOutputDir)
	}
	return nil
}
