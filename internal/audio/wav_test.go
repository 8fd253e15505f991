package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(sampleRate, channels, frames int, amp float64) Waveform {
	w := New(sampleRate, channels, frames)
	for c := 0; c < channels; c++ {
		for f := 0; f < frames; f++ {
			w.Samples[c][f] = float32(amp * math.Sin(2*math.Pi*440*float64(f)/float64(sampleRate)+float64(c)))
		}
	}
	return w
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24} {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "tone.wav")
		src := sine(44100, 2, 4410, 0.5)

		if err := WriteWAV(path, src, depth); err != nil {
			t.Fatalf("WriteWAV(%d): %v", depth, err)
		}
		got, err := ReadWAV(path)
		if err != nil {
			t.Fatalf("ReadWAV(%d): %v", depth, err)
		}
		if !got.SameShape(src) {
			t.Fatalf("shape changed: got (%d, %d) @ %d", got.Channels(), got.Frames(), got.SampleRate)
		}
		diff, err := MaxAbsDiff(src, got)
		if err != nil {
			t.Fatalf("MaxAbsDiff: %v", err)
		}
		tolerance := 2.0 / float64(int64(1)<<(depth-1))
		if diff > tolerance {
			t.Fatalf("bit depth %d: round trip error %v exceeds %v", depth, diff, tolerance)
		}
	}
}

func TestWriteWAVClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	w := Waveform{SampleRate: 8000, Samples: [][]float32{{2, -3, float32(math.NaN()), 0.25}}}
	if err := WriteWAV(path, w, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	ch := got.Samples[0]
	if ch[0] < 0.999 || ch[1] > -0.999 || ch[2] != 0 {
		t.Fatalf("expected clamped samples, got %v", ch)
	}
}

func TestWriteWAVIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	w := sine(22050, 2, 1000, 0.3)
	first := filepath.Join(dir, "a.wav")
	second := filepath.Join(dir, "b.wav")
	if err := WriteWAV(first, w, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := WriteWAV(second, w, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatal("identical waveforms produced different bytes")
	}
}

func TestWriteWAVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWAV(filepath.Join(dir, "out.wav"), sine(8000, 1, 100, 0.1), 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.wav" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestWriteWAVIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "residual.wav")
	if err := WriteWAV(path, sine(8000, 1, 80, 0.1), 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("mode = %v, want 0644", perm)
	}
}

func TestWriteWAVRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWAV(filepath.Join(dir, "x.wav"), sine(8000, 1, 10, 0.1), 12); err == nil {
		t.Fatal("expected unsupported bit depth error")
	}
	ragged := Waveform{SampleRate: 8000, Samples: [][]float32{{0, 0}, {0}}}
	if err := WriteWAV(filepath.Join(dir, "y.wav"), ragged, 16); err == nil {
		t.Fatal("expected ragged waveform error")
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadWAV(path); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("expected ErrNotWAV, got %v", err)
	}
}
