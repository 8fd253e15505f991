package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"voiceover/internal/config"
	"voiceover/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// FreeBytes reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckFreeSpace verifies that path's filesystem has at least minBytes free.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free on %s", formatBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func formatBytes(n uint64) string {
	return fmt.Sprintf("%.1f GiB", float64(n)/float64(1<<30))
}

// CheckSystemDeps evaluates the external binaries the pipeline and workspace
// shell out to. Both the CLI status command and serve startup use this.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpeg.Binary,
			Description: "Required for audio extraction and muxing",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(cfg.FFmpeg.Binary, cfg.FFmpeg.FFprobeBinary),
			Description: "Required for clip inspection",
		},
	}
	switch cfg.Separation.Launcher {
	case "python":
		requirements = append(requirements, deps.Requirement{
			Name:        "Python",
			Command:     cfg.Separation.PythonBinary,
			Description: "Runs the Demucs separation worker",
		})
	default:
		requirements = append(requirements, deps.Requirement{
			Name:        "uv",
			Command:     cfg.Separation.UVBinary,
			Description: "Provisions and runs the Demucs separation worker",
		})
	}
	return deps.CheckBinaries(requirements)
}
