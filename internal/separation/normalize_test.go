package separation

import (
	"math"
	"testing"

	"voiceover/internal/audio"
)

func assertFinite(t *testing.T, w audio.Waveform) {
	t.Helper()
	for c, ch := range w.Samples {
		for f, v := range ch {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("non-finite sample at (%d, %d): %v", c, f, v)
			}
		}
	}
}

func TestComputeStatsMatchesSampleStd(t *testing.T) {
	// Channel-collapsed reference is [1, 2, 3, 4]: mean 2.5, sample std sqrt(5/3).
	w := audio.Waveform{SampleRate: 8000, Samples: [][]float32{{0, 2, 2, 4}, {2, 2, 4, 4}}}
	stats := ComputeStats(w)
	if math.Abs(stats.Mean-2.5) > 1e-12 {
		t.Fatalf("mean = %v, want 2.5", stats.Mean)
	}
	want := math.Sqrt(5.0 / 3.0)
	if math.Abs(stats.Std-want) > 1e-12 {
		t.Fatalf("std = %v, want %v", stats.Std, want)
	}
	if stats.Clamped {
		t.Fatal("non-degenerate input should not be clamped")
	}
}

func TestNormalizeSilentInputStaysFinite(t *testing.T) {
	silent := audio.New(44100, 2, 44100)
	norm, stats := Normalize(silent)
	assertFinite(t, norm)
	if !stats.Clamped || stats.Std != 1 {
		t.Fatalf("expected clamped std of 1, got %+v", stats)
	}
	for _, ch := range norm.Samples {
		for _, v := range ch {
			if v != 0 {
				t.Fatalf("silent input should normalize to zeros, got %v", v)
			}
		}
	}
	back := Denormalize(norm, stats)
	if diff, _ := audio.MaxAbsDiff(silent, back); diff != 0 {
		t.Fatalf("silent round trip drifted by %v", diff)
	}
}

func TestNormalizeConstantAndTinyInputs(t *testing.T) {
	constant := audio.New(8000, 2, 100)
	for _, ch := range constant.Samples {
		for f := range ch {
			ch[f] = 0.25
		}
	}
	norm, stats := Normalize(constant)
	assertFinite(t, norm)
	if !stats.Clamped {
		t.Fatal("constant input should clamp std")
	}

	single := audio.Waveform{SampleRate: 8000, Samples: [][]float32{{0.5}, {0.5}}}
	norm, stats = Normalize(single)
	assertFinite(t, norm)
	if stats.Std != 1 {
		t.Fatalf("single frame should clamp std, got %v", stats.Std)
	}

	empty := audio.Waveform{SampleRate: 8000, Samples: [][]float32{{}, {}}}
	norm, _ = Normalize(empty)
	if norm.Frames() != 0 || norm.Channels() != 2 {
		t.Fatalf("unexpected shape for empty input: (%d, %d)", norm.Channels(), norm.Frames())
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	w := audio.New(44100, 2, 4096)
	for c := range w.Samples {
		for f := range w.Samples[c] {
			w.Samples[c][f] = float32(0.3*math.Sin(float64(f)*0.05+float64(c)) + 0.01)
		}
	}
	norm, stats := Normalize(w)
	assertFinite(t, norm)
	back := Denormalize(norm, stats)
	diff, err := audio.MaxAbsDiff(w, back)
	if err != nil {
		t.Fatalf("MaxAbsDiff: %v", err)
	}
	if diff > 1e-6 {
		t.Fatalf("round trip error %v exceeds 1e-6", diff)
	}
}

func TestDenormalizeStemsUsesSameStats(t *testing.T) {
	stats := Stats{Mean: 0.5, Std: 2}
	set := StemSet{
		Names: []string{"a", "b"},
		Stems: []audio.Waveform{
			{SampleRate: 8000, Samples: [][]float32{{1, -1}}},
			{SampleRate: 8000, Samples: [][]float32{{0, 2}}},
		},
	}
	out := DenormalizeStems(set, stats)
	want := [][]float32{{2.5, -1.5}, {0.5, 4.5}}
	for i, stem := range out.Stems {
		for f, v := range stem.Samples[0] {
			if v != want[i][f] {
				t.Fatalf("stem %d frame %d = %v, want %v", i, f, v, want[i][f])
			}
		}
	}
	if set.Stems[0].Samples[0][0] != 1 {
		t.Fatal("DenormalizeStems must not modify its input")
	}
}
