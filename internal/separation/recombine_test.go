package separation

import (
	"errors"
	"testing"

	"voiceover/internal/audio"
	"voiceover/internal/services"
)

func stemSet(values ...float32) StemSet {
	set := StemSet{}
	for i, v := range values {
		w := audio.New(8000, 2, 3)
		for _, ch := range w.Samples {
			for f := range ch {
				ch[f] = v
			}
		}
		set.Names = append(set.Names, string(rune('a'+i)))
		set.Stems = append(set.Stems, w)
	}
	return set
}

func TestRecombineExcludesIndex(t *testing.T) {
	set := stemSet(1, 2, 4, 8)
	residual, err := Recombine(set, 3)
	if err != nil {
		t.Fatalf("Recombine: %v", err)
	}
	for _, ch := range residual.Samples {
		for _, v := range ch {
			if v != 7 {
				t.Fatalf("expected residual 7, got %v", v)
			}
		}
	}
	if c, f := residual.Shape(); c != 2 || f != 3 || residual.SampleRate != 8000 {
		t.Fatalf("unexpected residual shape (%d, %d) @ %d", c, f, residual.SampleRate)
	}
}

func TestSumIncludesEveryStem(t *testing.T) {
	total, err := Sum(stemSet(1, 2, 4, 8))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if total.Samples[1][2] != 15 {
		t.Fatalf("expected 15, got %v", total.Samples[1][2])
	}
}

func TestRecombineRejectsBadInput(t *testing.T) {
	if _, err := Recombine(StemSet{}, NoExclusion); !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error for empty set, got %v", err)
	}
	if _, err := Recombine(stemSet(1, 2), 2); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for out of range index, got %v", err)
	}
	if _, err := Recombine(stemSet(1, 2), -2); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative index, got %v", err)
	}
	mismatched := stemSet(1, 2)
	mismatched.Stems[1] = audio.New(8000, 2, 4)
	if _, err := Recombine(mismatched, NoExclusion); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for shape mismatch, got %v", err)
	}
}

func TestCommentaryIndex(t *testing.T) {
	info := ModelInfo{Name: "htdemucs", Sources: []string{"drums", "bass", "other", "vocals"}}
	idx, err := CommentaryIndex(info, "Vocals")
	if err != nil || idx != 3 {
		t.Fatalf("CommentaryIndex = %d, %v; want 3", idx, err)
	}
	if _, err := CommentaryIndex(info, "speech"); !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected model load error for unknown stem, got %v", err)
	}
}

func TestValidateStemSet(t *testing.T) {
	info := ModelInfo{Name: "m", SampleRate: 8000, Channels: 2, Sources: []string{"a", "b"}}
	input := audio.New(8000, 2, 3)
	if err := ValidateStemSet(info, input, stemSet(1, 2)); err != nil {
		t.Fatalf("ValidateStemSet: %v", err)
	}
	if err := ValidateStemSet(info, input, stemSet(1)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
	swapped := stemSet(1, 2)
	swapped.Names = []string{"b", "a"}
	if err := ValidateStemSet(info, input, swapped); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected order mismatch, got %v", err)
	}
	if err := ValidateStemSet(info, audio.New(8000, 2, 5), stemSet(1, 2)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestCheckInputRejectsFormatMismatch(t *testing.T) {
	info := ModelInfo{Name: "htdemucs", SampleRate: 44100, Channels: 2, Sources: []string{"vocals"}}
	if err := CheckInput(info, audio.New(44100, 2, 10)); err != nil {
		t.Fatalf("CheckInput: %v", err)
	}
	err := CheckInput(info, audio.New(48000, 2, 10))
	if !errors.Is(err, services.ErrInference) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected inference validation error, got %v", err)
	}
	if err := CheckInput(info, audio.New(44100, 1, 10)); err == nil {
		t.Fatal("expected channel mismatch error")
	}
}
