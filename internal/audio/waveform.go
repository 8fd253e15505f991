package audio

import (
	"errors"
	"fmt"
	"time"
)

// Waveform is a dense multi-channel buffer of float32 samples.
type Waveform struct {
	SampleRate int
	Samples    [][]float32
}

// New allocates a zeroed waveform with the given shape.
func New(sampleRate, channels, frames int) Waveform {
	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}
	return Waveform{SampleRate: sampleRate, Samples: samples}
}

// Channels returns the channel count.
func (w Waveform) Channels() int { return len(w.Samples) }

// Frames returns the per-channel sample count.
func (w Waveform) Frames() int {
	if len(w.Samples) == 0 {
		return 0
	}
	return len(w.Samples[0])
}

// Shape returns (channels, frames).
func (w Waveform) Shape() (int, int) { return w.Channels(), w.Frames() }

// Duration is the playback length implied by the frame count and sample rate.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.SampleRate)
}

// Clone returns a deep copy.
func (w Waveform) Clone() Waveform {
	out := Waveform{SampleRate: w.SampleRate, Samples: make([][]float32, len(w.Samples))}
	for c, ch := range w.Samples {
		out.Samples[c] = append([]float32(nil), ch...)
	}
	return out
}

// SameShape reports whether o has the same sample rate, channel count, and frame count.
func (w Waveform) SameShape(o Waveform) bool {
	if w.SampleRate != o.SampleRate || w.Channels() != o.Channels() {
		return false
	}
	return w.Frames() == o.Frames()
}

// Validate checks that the waveform is rectangular and has a sample rate.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return errors.New("waveform has no channels")
	}
	frames := len(w.Samples[0])
	for c, ch := range w.Samples {
		if len(ch) != frames {
			return fmt.Errorf("channel %d has %d frames, want %d", c, len(ch), frames)
		}
	}
	return nil
}

// Interleave flattens the waveform into frame-major order (L R L R ...).
func (w Waveform) Interleave() []float32 {
	channels, frames := w.Shape()
	out := make([]float32, channels*frames)
	for c, ch := range w.Samples {
		for f, v := range ch {
			out[f*channels+c] = v
		}
	}
	return out
}

// Deinterleave builds a waveform from frame-major samples.
func Deinterleave(sampleRate, channels int, data []float32) (Waveform, error) {
	if channels <= 0 {
		return Waveform{}, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data)%channels != 0 {
		return Waveform{}, fmt.Errorf("sample count %d is not a multiple of %d channels", len(data), channels)
	}
	frames := len(data) / channels
	w := New(sampleRate, channels, frames)
	for i, v := range data {
		w.Samples[i%channels][i/channels] = v
	}
	return w, nil
}

// MaxAbsDiff returns the largest absolute per-sample difference between two
// waveforms of the same shape.
func MaxAbsDiff(a, b Waveform) (float64, error) {
	if a.Channels() != b.Channels() || a.Frames() != b.Frames() {
		ac, af := a.Shape()
		bc, bf := b.Shape()
		return 0, fmt.Errorf("shape mismatch (%d, %d) vs (%d, %d)", ac, af, bc, bf)
	}
	var worst float64
	for c := range a.Samples {
		for f := range a.Samples[c] {
			d := float64(a.Samples[c][f]) - float64(b.Samples[c][f])
			if d < 0 {
				d = -d
			}
			if d > worst {
				worst = d
			}
		}
	}
	return worst, nil
}
