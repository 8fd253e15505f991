package separation

import (
	"errors"
	"fmt"

	"voiceover/internal/audio"
	"voiceover/internal/services"
)

// NoExclusion makes Recombine sum every stem.
const NoExclusion = -1

var errEmptyStemSet = errors.New("empty stem set")

// Recombine sums every stem except the one at exclude.
func Recombine(set StemSet, exclude int) (audio.Waveform, error) {
	if len(set.Stems) == 0 {
		return audio.Waveform{}, services.Wrap(services.ErrInference, "recombine", "", "", errEmptyStemSet)
	}
	if exclude < NoExclusion || exclude >= len(set.Stems) {
		msg := fmt.Sprintf("exclude index %d out of range for %d stems", exclude, len(set.Stems))
		return audio.Waveform{}, services.Wrap(services.ErrInference, "recombine", "", msg, services.ErrValidation)
	}
	first := set.Stems[0]
	if err := first.Validate(); err != nil {
		return audio.Waveform{}, services.Wrap(services.ErrInference, "recombine", "", "", fmt.Errorf("%w: %w", services.ErrValidation, err))
	}
	for i, stem := range set.Stems[1:] {
		if !stem.SameShape(first) {
			msg := fmt.Sprintf("stem %d shape differs from stem 0", i+1)
			return audio.Waveform{}, services.Wrap(services.ErrInference, "recombine", "", msg, services.ErrValidation)
		}
	}

	channels, frames := first.Shape()
	acc := make([][]float64, channels)
	for c := range acc {
		acc[c] = make([]float64, frames)
	}
	for i, stem := range set.Stems {
		if i == exclude {
			continue
		}
		for c, ch := range stem.Samples {
			row := acc[c]
			for f, v := range ch {
				row[f] += float64(v)
			}
		}
	}

	out := audio.New(first.SampleRate, channels, frames)
	for c := range acc {
		for f, v := range acc[c] {
			out.Samples[c][f] = float32(v)
		}
	}
	return out, nil
}

// Sum adds every stem together.
func Sum(set StemSet) (audio.Waveform, error) {
	return Recombine(set, NoExclusion)
}

// ReconstructionError is the largest absolute difference between the sum of
// all stems and the original mix. Denormalization adds the mean to every
// stem, so for K stems the expected error includes (K-1)*|mean|.
func ReconstructionError(mix audio.Waveform, set StemSet) (float64, error) {
	total, err := Sum(set)
	if err != nil {
		return 0, err
	}
	return audio.MaxAbsDiff(mix, total)
}
