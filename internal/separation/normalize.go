package separation

import (
	"math"

	"voiceover/internal/audio"
)

// MinStd is the smallest standard deviation used as a divisor. Anything
// smaller, or non-finite, is replaced by 1.
const MinStd = 1e-8

// Stats are the normalization statistics of one mixed waveform.
type Stats struct {
	Mean float64
	Std  float64
	// Clamped is set when the measured deviation was degenerate and Std was
	// replaced by 1.
	Clamped bool
}

// ComputeStats measures the mean and sample standard deviation of the
// channel-collapsed waveform (the per-frame average across channels).
func ComputeStats(w audio.Waveform) Stats {
	channels, frames := w.Shape()
	if channels == 0 || frames == 0 {
		return Stats{Std: 1, Clamped: true}
	}

	ref := make([]float64, frames)
	for _, ch := range w.Samples {
		for f, v := range ch {
			ref[f] += float64(v)
		}
	}
	var sum float64
	for f := range ref {
		ref[f] /= float64(channels)
		sum += ref[f]
	}
	mean := sum / float64(frames)

	std := math.NaN()
	if frames > 1 {
		var sq float64
		for _, v := range ref {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(frames-1))
	}

	stats := Stats{Mean: mean, Std: std}
	if math.IsNaN(std) || math.IsInf(std, 0) || std < MinStd {
		stats.Std = 1
		stats.Clamped = true
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		stats.Mean = 0
	}
	return stats
}

// Normalize returns (w - mean) / std along with the stats used.
func Normalize(w audio.Waveform) (audio.Waveform, Stats) {
	stats := ComputeStats(w)
	out := audio.Waveform{SampleRate: w.SampleRate, Samples: make([][]float32, len(w.Samples))}
	for c, ch := range w.Samples {
		dst := make([]float32, len(ch))
		for f, v := range ch {
			dst[f] = float32((float64(v) - stats.Mean) / stats.Std)
		}
		out.Samples[c] = dst
	}
	return out, stats
}

// Denormalize returns w * std + mean.
func Denormalize(w audio.Waveform, stats Stats) audio.Waveform {
	out := audio.Waveform{SampleRate: w.SampleRate, Samples: make([][]float32, len(w.Samples))}
	for c, ch := range w.Samples {
		dst := make([]float32, len(ch))
		for f, v := range ch {
			dst[f] = float32(float64(v)*stats.Std + stats.Mean)
		}
		out.Samples[c] = dst
	}
	return out
}

// DenormalizeStems applies Denormalize with the same stats to every stem.
func DenormalizeStems(set StemSet, stats Stats) StemSet {
	out := StemSet{Names: append([]string(nil), set.Names...), Stems: make([]audio.Waveform, len(set.Stems))}
	for i, stem := range set.Stems {
		out.Stems[i] = Denormalize(stem, stats)
	}
	return out
}
