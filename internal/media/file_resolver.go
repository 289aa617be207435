package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// FileScheme prefixes refs of files inside the local library directory.
const FileScheme = "file:"

var sidecarAudioExts = []string{".m4a", ".mp3", ".aac", ".opus", ".wav"}

// FileResolver reads refs of the form "file:<path relative to root>". A file
// next to the video with the same name and an audio extension becomes the
// entry's audio.
type FileResolver struct {
	root     string
	maxBytes int64
}

func NewFileResolver(root string, maxBytes int64) *FileResolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceBytes
	}
	return &FileResolver{root: root, maxBytes: maxBytes}
}

func FileRef(rel string) string {
	return FileScheme + filepath.ToSlash(rel)
}

// PathFor maps a file ref to an absolute path under the root, rejecting refs
// that would escape it.
func (r *FileResolver) PathFor(sourceRef string) (string, error) {
	rel, ok := strings.CutPrefix(sourceRef, FileScheme)
	if !ok || rel == "" {
		return "", fmt.Errorf("%w: %q is not a file ref", ErrSourceUnavailable, sourceRef)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q escapes the library", ErrSourceUnavailable, sourceRef)
		}
	}
	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %q is absolute", ErrSourceUnavailable, sourceRef)
	}
	return filepath.Join(r.root, filepath.FromSlash(rel)), nil
}

func (r *FileResolver) Resolve(ctx context.Context, sourceRef string) (*Entry, error) {
	path, err := r.PathFor(sourceRef)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	video, err := r.read(path, KindVideo)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		SourceRef: sourceRef,
		Title:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Video:     video,
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range sidecarAudioExts {
		if strings.EqualFold(ext, filepath.Ext(path)) {
			continue
		}
		if _, err := os.Stat(stem + ext); err == nil {
			if audio, err := r.read(stem+ext, KindAudio); err == nil {
				entry.Audio = audio
			}
			break
		}
	}
	return entry, nil
}

func (r *FileResolver) read(path string, kind Kind) (*Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, filepath.Base(path))
		}
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, filepath.Base(path))
	}
	if info.Size() > r.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), r.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}
	return NewHandle(kind, mime.TypeByExtension(filepath.Ext(path)), data), nil
}

// Router dispatches file refs to a FileResolver and everything else to a
// fallback resolver.
type Router struct {
	Files    *FileResolver
	Fallback Resolver
}

func (r Router) Resolve(ctx context.Context, sourceRef string) (*Entry, error) {
	if strings.HasPrefix(sourceRef, FileScheme) {
		if r.Files == nil {
			return nil, fmt.Errorf("%w: no library configured for %s", ErrSourceUnavailable, sourceRef)
		}
		return r.Files.Resolve(ctx, sourceRef)
	}
	if r.Fallback == nil {
		return nil, fmt.Errorf("%w: no remote media configured for %s", ErrSourceUnavailable, sourceRef)
	}
	return r.Fallback.Resolve(ctx, sourceRef)
}
