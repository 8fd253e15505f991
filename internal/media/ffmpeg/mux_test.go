package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"voiceover/internal/services"
)

func TestMergeArgsVoiceOnly(t *testing.T) {
	got := MergeArgs(MergeRequest{Video: "v.mp4", VoiceOver: "r.webm"}, "out.mp4")
	want := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "v.mp4", "-i", "r.webm",
		"-map", "0:v:0", "-map", "1:a:0", "-c:v", "copy", "-c:a", "aac", "-shortest", "out.mp4"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}
}

func TestMergeArgsWithBackground(t *testing.T) {
	got := MergeArgs(MergeRequest{Video: "v.mp4", VoiceOver: "r.webm", Background: "bg.wav"}, "out.mp4")
	if !slices.Contains(got, "bg.wav") || !slices.Contains(got, "[aout]") {
		t.Fatalf("expected amix graph, got %v", got)
	}
	if slices.Contains(got, "1:a:0") {
		t.Fatalf("voice-only mapping should not be used with background: %v", got)
	}
}

func TestMergeWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "intro.mp4")
	voice := filepath.Join(dir, "intro_1.webm")
	for _, p := range []string{video, voice} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	out := filepath.Join(dir, "merged", "intro_1_merged.mp4")
	var target string
	m := NewMuxer("ffmpeg", 0, func(_ context.Context, _ string, args ...string) ([]byte, error) {
		target = args[len(args)-1]
		return nil, os.WriteFile(target, []byte("muxed"), 0o644)
	})
	if err := m.Merge(context.Background(), MergeRequest{Video: video, VoiceOver: voice, Output: out}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if target == out {
		t.Fatal("ffmpeg should write to a partial path first")
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "muxed" {
		t.Fatalf("unexpected output %q: %v", data, err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone, stat err=%v", err)
	}
}

func TestMergeMissingInput(t *testing.T) {
	m := NewMuxer("ffmpeg", 0, func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("ffmpeg must not run")
		return nil, nil
	})
	err := m.Merge(context.Background(), MergeRequest{Video: "/missing.mp4", VoiceOver: "/missing.webm", Output: "/tmp/x.mp4"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
