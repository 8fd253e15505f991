package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voiceover/internal/logging"
)

// CleanStaleResult contains the outcome of a cleanup sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes per-clip work directories older than maxAge. A clean run
// removes its own directory; anything old enough to match was left by a crash.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return result
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		result.remove(dirPath, info.ModTime(), logger, "stale work directory")
	}

	return result
}

// CleanPartialOutputs removes hidden temp files (".name-*.tmp") older than
// maxAge from outputDir. Atomic writers leave these behind only when the
// process dies between create and rename.
func CleanPartialOutputs(ctx context.Context, outputDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return result
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: outputDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".tmp") {
			continue
		}
		path := filepath.Join(outputDir, name)
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		result.remove(path, info.ModTime(), logger, "partial output")
	}
	return result
}

func (r *CleanStaleResult) remove(path string, modTime time.Time, logger *slog.Logger, what string) {
	if err := os.RemoveAll(path); err != nil {
		r.Errors = append(r.Errors, CleanupError{Path: path, Error: err})
		if logger != nil {
			logger.Warn("failed to remove "+what,
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "work_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check work_dir and processed_audio_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
		return
	}
	r.Removed = append(r.Removed, path)
	if logger != nil {
		logger.Info("removed "+what,
			logging.String("path", path),
			logging.Duration("age", time.Since(modTime)),
			logging.String(logging.FieldEventType, "work_cleanup"),
		)
	}
}

// ListDirectories returns all directories in the work directory with their metadata.
func ListDirectories(workDir string) ([]DirInfo, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(workDir, entry.Name())
		size, _ := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

// DirInfo contains metadata about a work directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
