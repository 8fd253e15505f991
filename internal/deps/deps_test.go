package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesUnconfigured(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "uv", Command: "  ", Optional: true}})
	if results[0].Available {
		t.Fatal("expected blank command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %q", results[0].Detail)
	}
	if !results[0].Optional {
		t.Fatal("expected optional flag to carry through")
	}
}

func TestResolveFFprobePathPrefersSibling(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	if got := ResolveFFprobePath(ffmpegPath, "ffprobe"); got != ffprobePath {
		t.Fatalf("expected sibling %q, got %q", ffprobePath, got)
	}
	if got := ResolveFFprobePath(ffmpegPath, ""); got != ffprobePath {
		t.Fatalf("expected sibling for blank config, got %q", got)
	}
}

func TestResolveFFprobePathExplicitWins(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	script := []byte("#!/bin/sh\nexit 0\n")
	for _, name := range []string{ffmpegPath, filepath.Join(tmp, executableName("ffprobe"))} {
		if err := os.WriteFile(name, script, 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}

	if got := ResolveFFprobePath(ffmpegPath, "/opt/probe/ffprobe"); got != "/opt/probe/ffprobe" {
		t.Fatalf("expected explicit path, got %q", got)
	}
}

func TestResolveFFprobePathFallsBackToName(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if got := ResolveFFprobePath(ffmpegPath, "ffprobe"); got != "ffprobe" {
		t.Fatalf("expected bare name without sibling, got %q", got)
	}

	t.Setenv("PATH", "")
	if got := ResolveFFprobePath("ffmpeg", "ffprobe"); got != "ffprobe" {
		t.Fatalf("expected bare name when ffmpeg unresolved, got %q", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
