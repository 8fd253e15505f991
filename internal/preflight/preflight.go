package preflight

import (
	"context"

	"voiceover/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Directory checks cover every location the pipeline and workspace write to;
// the free-space check only runs when batch.min_free_gib is set.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Clips are read-only input but the directory must be listable.
	results = append(results, CheckDirectoryReadable("Clips directory", cfg.Paths.ClipsDir))

	for _, dir := range []struct{ name, path string }{
		{"Processed audio directory", cfg.Paths.ProcessedAudioDir},
		{"Recordings directory", cfg.Paths.RecordingsDir},
		{"Merged directory", cfg.Paths.MergedDir},
		{"Work directory", cfg.Paths.WorkDir},
		{"State directory", cfg.Paths.StateDir},
	} {
		if dir.path == "" {
			continue
		}
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}

	if cfg.Batch.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.ProcessedAudioDir, minFreeBytes(cfg)))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	return results
}

// MinFreeBytes converts batch.min_free_gib into bytes.
func MinFreeBytes(cfg *config.Config) uint64 {
	if cfg == nil {
		return 0
	}
	return minFreeBytes(cfg)
}

func minFreeBytes(cfg *config.Config) uint64 {
	if cfg.Batch.MinFreeGiB <= 0 {
		return 0
	}
	return uint64(cfg.Batch.MinFreeGiB * float64(1<<30))
}
