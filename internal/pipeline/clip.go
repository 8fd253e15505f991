package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voiceover/internal/services"
)

// Clip is a source video discovered in the clips directory. ID is the file
// name without its extension.
type Clip struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// NewClip builds a Clip for path.
func NewClip(path string) Clip {
	base := filepath.Base(path)
	return Clip{
		ID:   strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
}

// Discover lists every regular file in dir whose extension matches ext
// (case-insensitive), sorted by file name. Hidden files are skipped.
func Discover(dir, ext string) ([]Clip, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrValidation, "discover", "stat clips dir", dir, fmt.Errorf("%w: %w", services.ErrNotFound, err))
		}
		return nil, services.Wrap(services.ErrValidation, "discover", "stat clips dir", dir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "discover", "", dir+" is not a directory", nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discover", "read clips dir", dir, err)
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	var clips []Clip
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if ext != "" && strings.ToLower(filepath.Ext(name)) != ext {
			continue
		}
		clips = append(clips, NewClip(filepath.Join(dir, name)))
	}
	sort.Slice(clips, func(i, j int) bool { return filepath.Base(clips[i].Path) < filepath.Base(clips[j].Path) })
	return clips, nil
}
