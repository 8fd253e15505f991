package separation

import (
	"context"
	"fmt"
	"strings"

	"voiceover/internal/audio"
	"voiceover/internal/services"
)

// ModelInfo is the contract a loaded model publishes.
type ModelInfo struct {
	Name       string   `json:"name"`
	SampleRate int      `json:"samplerate"`
	Channels   int      `json:"channels"`
	Sources    []string `json:"sources"`
	Device     string   `json:"device"`
}

// Model separates a normalized waveform into stems. Implementations must be
// safe for concurrent use; inference may be serialized internally.
type Model interface {
	Info() ModelInfo
	Separate(ctx context.Context, w audio.Waveform) (StemSet, error)
	Close() error
}

// StemSet is the ordered output of a separation call. Names[i] labels Stems[i].
type StemSet struct {
	Names []string
	Stems []audio.Waveform
}

// Len returns the number of stems.
func (s StemSet) Len() int { return len(s.Stems) }

// CheckInput reports whether w matches the model's sample rate and channel
// count. No resampling is performed anywhere in the pipeline.
func CheckInput(info ModelInfo, w audio.Waveform) error {
	if err := w.Validate(); err != nil {
		return services.Wrap(services.ErrInference, "separate", "check input", "", fmt.Errorf("%w: %w", services.ErrValidation, err))
	}
	if w.SampleRate != info.SampleRate || w.Channels() != info.Channels {
		msg := fmt.Sprintf("input is %d Hz x %d ch, model %s expects %d Hz x %d ch",
			w.SampleRate, w.Channels(), info.Name, info.SampleRate, info.Channels)
		return services.Wrap(services.ErrInference, "separate", "check input", msg, services.ErrValidation)
	}
	return nil
}

// ValidateStemSet rejects a stem set whose count or order differs from the
// model's declared sources, or whose stems do not all match input's shape.
func ValidateStemSet(info ModelInfo, input audio.Waveform, set StemSet) error {
	if len(set.Stems) != len(info.Sources) || len(set.Names) != len(info.Sources) {
		msg := fmt.Sprintf("model %s declared %d sources, got %d stems", info.Name, len(info.Sources), len(set.Stems))
		return services.Wrap(services.ErrInference, "separate", "validate stems", msg, services.ErrValidation)
	}
	for i, name := range info.Sources {
		if set.Names[i] != name {
			msg := fmt.Sprintf("stem %d is %q, model declared %q", i, set.Names[i], name)
			return services.Wrap(services.ErrInference, "separate", "validate stems", msg, services.ErrValidation)
		}
		if !set.Stems[i].SameShape(input) {
			c, f := set.Stems[i].Shape()
			ic, ifr := input.Shape()
			msg := fmt.Sprintf("stem %q has shape (%d, %d), input is (%d, %d)", name, c, f, ic, ifr)
			return services.Wrap(services.ErrInference, "separate", "validate stems", msg, services.ErrValidation)
		}
	}
	return nil
}

// CommentaryIndex resolves the stem excluded from the residual by name.
func CommentaryIndex(info ModelInfo, stemName string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(stemName))
	for i, name := range info.Sources {
		if strings.ToLower(name) == want {
			return i, nil
		}
	}
	msg := fmt.Sprintf("model %s has no %q source (sources: %s)", info.Name, stemName, strings.Join(info.Sources, ", "))
	return -1, services.Wrap(services.ErrModelLoad, "separate", "resolve commentary stem", msg, services.ErrConfiguration)
}
