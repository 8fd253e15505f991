package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voiceover/internal/services"
)

// MergeRequest describes a voice-over mux.
type MergeRequest struct {
	Video     string
	VoiceOver string
	// Background, when set, is mixed under the voice-over instead of dropping
	// the clip's audio entirely.
	Background string
	Output     string
}

// Muxer combines clip video with a recorded voice-over.
type Muxer struct {
	binary  string
	timeout time.Duration
	run     CommandRunner
}

// NewMuxer builds a muxer. A nil runner uses exec.
func NewMuxer(binary string, timeout time.Duration, run CommandRunner) *Muxer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = defaultRunner
	}
	return &Muxer{binary: binary, timeout: timeout, run: run}
}

// MergeArgs returns the ffmpeg arguments for req writing to dest.
func MergeArgs(req MergeRequest, dest string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.Video, "-i", req.VoiceOver}
	if req.Background != "" {
		args = append(args,
			"-i", req.Background,
			"-filter_complex", "[1:a][2:a]amix=inputs=2:duration=first:dropout_transition=0[aout]",
			"-map", "0:v:0",
			"-map", "[aout]",
		)
	} else {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	}
	return append(args, "-c:v", "copy", "-c:a", "aac", "-shortest", dest)
}

// Merge writes the muxed clip to req.Output atomically.
func (m *Muxer) Merge(ctx context.Context, req MergeRequest) error {
	for _, input := range []string{req.Video, req.VoiceOver, req.Background} {
		if input == "" {
			continue
		}
		if _, err := os.Stat(input); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return services.Wrap(services.ErrExternalTool, "merge", "stat input", input, services.ErrNotFound)
			}
			return services.Wrap(services.ErrExternalTool, "merge", "stat input", input, err)
		}
	}
	if strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrValidation, "merge", "", "output path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return services.Wrap(services.ErrWrite, "merge", "create destination", "", err)
	}

	ext := filepath.Ext(req.Output)
	partial := strings.TrimSuffix(req.Output, ext) + ".partial" + ext

	runCtx := ctx
	cancel := func() {}
	if m.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
	}
	defer cancel()

	output, err := m.run(runCtx, m.binary, MergeArgs(req, partial)...)
	if err != nil {
		_ = os.Remove(partial)
		return classify(ctx, runCtx, services.ErrExternalTool, "merge audio and video", output, err)
	}
	if err := os.Rename(partial, req.Output); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrWrite, "merge", "finalize output", "", err)
	}
	return nil
}
