package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"voiceover/internal/media/ffprobe"
	"voiceover/internal/services"
)

type signalExit struct{}

func (signalExit) Error() string { return "signal: killed" }
func (signalExit) ExitCode() int { return -1 }

type statusExit struct{ code int }

func (e statusExit) Error() string { return "exit status 1" }
func (e statusExit) ExitCode() int { return e.code }

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intro.mp4")
	if err := os.WriteFile(path, []byte("fake mp4"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

func TestExtractArgs(t *testing.T) {
	e := NewExtractor("", 44100, 2)
	got := e.Args("in.mp4", "out.wav")
	want := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in.mp4", "-vn", "-acodec", "pcm_s16le", "-ar", "44100", "-ac", "2", "out.wav"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}
}

func TestExtractSuccess(t *testing.T) {
	clip := writeClip(t)
	dest := filepath.Join(t.TempDir(), "work", "audio.wav")
	var calls int
	e := NewExtractor("ffmpeg", 44100, 2, WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls++
		if name != "ffmpeg" {
			t.Fatalf("unexpected binary %q", name)
		}
		return nil, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
	}))
	if err := e.Extract(context.Background(), clip, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", calls)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected output: %v", err)
	}
}

func TestExtractMissingInputSkipsFFmpeg(t *testing.T) {
	e := NewExtractor("ffmpeg", 44100, 2, WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("ffmpeg must not run for a missing input")
		return nil, nil
	}))
	err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, services.ErrExtraction) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected extraction+not found, got %v", err)
	}
	if services.IsTransient(err) {
		t.Fatal("missing input must not be transient")
	}
}

func TestExtractFailureCarriesOutput(t *testing.T) {
	clip := writeClip(t)
	e := NewExtractor("ffmpeg", 44100, 2, WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("  moov atom not found\n"), statusExit{code: 1}
	}))
	err := e.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
	if services.IsTransient(err) {
		t.Fatal("plain non-zero exit must not be transient")
	}
}

func TestExtractSignalIsTransient(t *testing.T) {
	clip := writeClip(t)
	e := NewExtractor("ffmpeg", 44100, 2, WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, signalExit{}
	}))
	err := e.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "a.wav"))
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	clip := writeClip(t)
	e := NewExtractor("ffmpeg", 44100, 2,
		WithTimeout(10*time.Millisecond),
		WithRunner(func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, signalExit{}
		}),
	)
	err := e.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, services.ErrTimeout) || !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction timeout, got %v", err)
	}
}

func TestExtractCancelledIsNotTransient(t *testing.T) {
	clip := writeClip(t)
	ctx, cancel := context.WithCancel(context.Background())
	e := NewExtractor("ffmpeg", 44100, 2, WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		cancel()
		return nil, signalExit{}
	}))
	err := e.Extract(ctx, clip, filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if services.IsTransient(err) {
		t.Fatal("cancellation must not be retried")
	}
}

func TestExtractProbeRejectsSilentContainer(t *testing.T) {
	clip := writeClip(t)
	probed := 0
	prober := ffprobe.New("ffprobe").WithOutputFunc(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		probed++
		if args[len(args)-1] != clip {
			t.Fatalf("ffprobe called with unexpected args: %v", args)
		}
		return []byte(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"}],"format":{"duration":"10.0"}}`), nil
	})
	ran := 0
	e := NewExtractor("ffmpeg", 44100, 2,
		WithProber(prober),
		WithRunner(func(context.Context, string, ...string) ([]byte, error) {
			ran++
			return nil, nil
		}),
	)
	dest := filepath.Join(t.TempDir(), "a.wav")
	err := e.Extract(context.Background(), clip, dest)
	if !errors.Is(err, services.ErrExtraction) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation extraction failure, got %v", err)
	}
	if probed != 1 {
		t.Fatalf("expected one ffprobe call, got %d", probed)
	}
	if ran != 0 {
		t.Fatalf("ffmpeg ran %d time(s) for a clip without audio", ran)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("no output expected, stat err=%v", statErr)
	}
}

func TestExtractProbeWithAudioRunsFFmpeg(t *testing.T) {
	clip := writeClip(t)
	prober := ffprobe.New("ffprobe").WithOutputFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio"}],"format":{}}`), nil
	})
	ran := 0
	e := NewExtractor("ffmpeg", 44100, 2,
		WithProber(prober),
		WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
			ran++
			return nil, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
		}),
	)
	if err := e.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "a.wav")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected ffmpeg to run once, got %d", ran)
	}
}
