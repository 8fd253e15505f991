package services_test

import (
	"errors"
	"strings"
	"testing"

	"voiceover/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "extract", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"extraction", services.Wrap(services.ErrExtraction, "extract", "", "", nil), "extraction"},
		{"model load", services.Wrap(services.ErrModelLoad, "load", "", "", nil), "model_load"},
		{"inference", services.Wrap(services.ErrInference, "separate", "", "", nil), "inference"},
		{"write", services.Wrap(services.ErrWrite, "write", "", "", nil), "write"},
		{"inference timeout prefers pipeline marker", services.Wrap(services.ErrInference, "separate", "", "", services.ErrTimeout), "inference"},
		{"bare timeout", services.Wrap(services.ErrTimeout, "", "", "", nil), "timeout"},
		{"plain", errors.New("x"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("%s: Kind = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMarkTransient(t *testing.T) {
	base := services.Wrap(services.ErrExtraction, "extract", "", "crashed", nil)
	marked := services.MarkTransient(base)
	if !services.IsTransient(marked) {
		t.Fatalf("expected transient marker on %v", marked)
	}
	if !errors.Is(marked, services.ErrExtraction) {
		t.Fatalf("expected extraction marker retained on %v", marked)
	}
	if services.MarkTransient(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
	if services.IsTransient(base) {
		t.Fatal("unmarked error should not be transient")
	}
}
