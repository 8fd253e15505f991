package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", SampleRate: "44100", Channels: 2},
			{CodecType: "audio", SampleRate: "48000"},
		},
		Format: Format{
			Duration: "10.000000",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 || !result.HasAudio() {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	primary, ok := result.PrimaryAudio()
	if !ok || primary.SampleRateHz() != 44100 || primary.Channels != 2 {
		t.Fatalf("unexpected primary audio stream: %+v", primary)
	}
	if result.DurationSeconds() != 10 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video"}},
		Format:  Format{Duration: "bad", Size: "-1"},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.HasAudio() {
		t.Fatal("video-only result should report no audio")
	}
	if _, ok := result.PrimaryAudio(); ok {
		t.Fatal("expected no primary audio stream")
	}
	if (Stream{SampleRate: "n/a"}).SampleRateHz() != 0 {
		t.Fatal("expected unparseable sample rate to be 0")
	}
}

func TestProberInspectParsesOutput(t *testing.T) {
	var gotArgs []string
	prober := New("").WithOutputFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio","sample_rate":"44100","channels":2}],"format":{"duration":"10.0"}}`), nil
	})
	result, err := prober.Inspect(context.Background(), "/clips/intro.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !result.HasAudio() || result.DurationSeconds() != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/clips/intro.mp4" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("path should follow --, got %v", gotArgs)
	}
}

func TestProberInspectErrors(t *testing.T) {
	failing := New("ffprobe").WithOutputFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("moov atom not found"), errors.New("exit status 1")
	})
	if _, err := failing.Inspect(context.Background(), "/clips/broken.mp4"); err == nil {
		t.Fatal("expected inspect error")
	}
	garbage := New("ffprobe").WithOutputFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	})
	if _, err := garbage.Inspect(context.Background(), "/clips/x.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := New("").Inspect(context.Background(), "  "); err == nil {
		t.Fatal("expected empty path error")
	}
}
