package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"voiceover/internal/audio"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Tone builds a stereo-capable mix of two sines, one per "source", so
// separation tests have something non-trivial to split.
func Tone(sampleRate, channels, frames int, amp float64) audio.Waveform {
	w := audio.New(sampleRate, channels, frames)
	for c := 0; c < channels; c++ {
		for f := 0; f < frames; f++ {
			t := float64(f) / float64(sampleRate)
			v := amp * (0.6*math.Sin(2*math.Pi*220*t+float64(c)) + 0.4*math.Sin(2*math.Pi*1330*t))
			w.Samples[c][f] = float32(v)
		}
	}
	return w
}

// WriteWAV writes w as 16-bit PCM to path.
func WriteWAV(t testing.TB, path string, w audio.Waveform) {
	t.Helper()
	if err := audio.WriteWAV(path, w, 16); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
}

// WriteClip places a fake clip under dir. The clip body is a WAV so that
// FakeExtractor can "extract" it by copying; pass a nil waveform to write a
// corrupt clip instead.
func WriteClip(t testing.TB, dir, id string, w *audio.Waveform) string {
	t.Helper()
	path := filepath.Join(dir, id+".mp4")
	if w == nil {
		WriteFile(t, path, 512)
		return path
	}
	WriteWAV(t, path, *w)
	return path
}
