package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"voiceover/internal/audio"
	"voiceover/internal/fileutil"
	"voiceover/internal/separation"
	"voiceover/internal/services"
)

// HTDemucsSources is the source order published by the htdemucs model.
var HTDemucsSources = []string{"drums", "bass", "other", "vocals"}

// FakeModel splits its input into fixed fractions per stem, so the stems sum
// exactly to the input. It is safe for concurrent use.
type FakeModel struct {
	ModelInfo separation.ModelInfo
	Weights   []float32
	// Err, when set, is returned from every Separate call.
	Err error
	// Hook runs at the start of every Separate call.
	Hook func(ctx context.Context, w audio.Waveform) error

	calls  atomic.Int64
	active atomic.Int64
	peak   atomic.Int64
	closed atomic.Bool
}

// NewFakeModel returns a 44.1 kHz stereo model with the htdemucs sources.
func NewFakeModel() *FakeModel {
	return &FakeModel{
		ModelInfo: separation.ModelInfo{
			Name:       "htdemucs",
			SampleRate: 44100,
			Channels:   2,
			Sources:    append([]string(nil), HTDemucsSources...),
			Device:     "cpu",
		},
		Weights: []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func (m *FakeModel) Info() separation.ModelInfo { return m.ModelInfo }

func (m *FakeModel) Separate(ctx context.Context, w audio.Waveform) (separation.StemSet, error) {
	m.calls.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if m.closed.Load() {
		return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", "", "model closed", nil)
	}
	if err := separation.CheckInput(m.ModelInfo, w); err != nil {
		return separation.StemSet{}, err
	}
	if m.Hook != nil {
		if err := m.Hook(ctx, w); err != nil {
			return separation.StemSet{}, err
		}
	}
	if m.Err != nil {
		return separation.StemSet{}, m.Err
	}

	set := separation.StemSet{Names: append([]string(nil), m.ModelInfo.Sources...)}
	for _, weight := range m.Weights {
		stem := w.Clone()
		for _, ch := range stem.Samples {
			for f := range ch {
				ch[f] *= weight
			}
		}
		set.Stems = append(set.Stems, stem)
	}
	return set, nil
}

func (m *FakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

// Calls returns the number of Separate invocations.
func (m *FakeModel) Calls() int { return int(m.calls.Load()) }

// PeakConcurrency returns the largest number of simultaneous Separate calls.
func (m *FakeModel) PeakConcurrency() int { return int(m.peak.Load()) }

// Closed reports whether Close was called.
func (m *FakeModel) Closed() bool { return m.closed.Load() }

// FakeFactory returns a separation.Factory that hands out model, or err.
func FakeFactory(model separation.Model, err error) separation.Factory {
	return func(context.Context, string) (separation.Model, error) {
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}

// FakeExtractor "extracts" audio by copying the clip file, which tests write
// as a WAV. Clips that do not decode fail like a real ffmpeg would.
type FakeExtractor struct {
	// Failures maps a video path to the number of transient failures to
	// return before succeeding.
	Failures map[string]int

	mu    sync.Mutex
	calls map[string]int
}

func (e *FakeExtractor) Extract(ctx context.Context, video, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.calls == nil {
		e.calls = make(map[string]int)
	}
	e.calls[video]++
	attempt := e.calls[video]
	remaining := e.Failures[video]
	e.mu.Unlock()

	if attempt <= remaining {
		return services.MarkTransient(services.Wrap(services.ErrExtraction, "extract", "ffmpeg", "signal: killed", errors.New("killed")))
	}
	if _, err := os.Stat(video); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "stat input", video, fmt.Errorf("%w: %w", services.ErrNotFound, err))
	}
	if _, err := audio.ReadWAV(video); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "ffmpeg", "invalid data found when processing input", err)
	}
	return fileutil.CopyFile(video, dest)
}

// Calls returns how many times video was extracted.
func (e *FakeExtractor) Calls(video string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[video]
}
