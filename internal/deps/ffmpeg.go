package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobePath picks the ffprobe binary to run alongside ffmpegBinary.
//
// An explicitly configured path wins. When ffprobe is left as the bare
// command name, an ffprobe sitting next to the resolved ffmpeg is preferred
// over whatever PATH finds first, so static builds unpacked into one
// directory stay paired.
func ResolveFFprobePath(ffmpegBinary, ffprobeBinary string) string {
	configured := strings.TrimSpace(ffprobeBinary)
	if configured == "" {
		configured = "ffprobe"
	}
	if configured != "ffprobe" {
		return configured
	}

	ffmpeg := strings.TrimSpace(ffmpegBinary)
	if ffmpeg == "" {
		return configured
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return configured
	}
	candidate, ok := siblingCandidate(resolved, "ffprobe")
	if !ok {
		return configured
	}
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return configured
}

func siblingCandidate(binaryPath, name string) (string, bool) {
	if binaryPath == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
