package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"voiceover/internal/services"
)

// CommandRunner executes name with args and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

type exitCoder interface {
	ExitCode() int
}

// classify turns a failed ffmpeg run into a marked error. parent is the
// caller's context and run the per-invocation context carrying the timeout.
func classify(parent, run context.Context, marker error, op string, output []byte, err error) error {
	detail := trimOutput(output)
	switch {
	case parent.Err() != nil:
		return services.Wrap(marker, "ffmpeg", op, "cancelled", parent.Err())
	case errors.Is(run.Err(), context.DeadlineExceeded):
		return services.Wrap(marker, "ffmpeg", op, "timed out", fmt.Errorf("%w: %w", services.ErrTimeout, err))
	}

	var lookErr *exec.Error
	if errors.As(err, &lookErr) {
		return services.Wrap(marker, "ffmpeg", op, "binary unavailable", fmt.Errorf("%w: %w", services.ErrExternalTool, err))
	}

	wrapped := services.Wrap(marker, "ffmpeg", op, detail, err)
	var coder exitCoder
	if errors.As(err, &coder) && coder.ExitCode() < 0 {
		// Killed by a signal rather than exiting with a status.
		return services.MarkTransient(wrapped)
	}
	return wrapped
}

func trimOutput(output []byte) string {
	const limit = 2048
	text := strings.TrimSpace(string(output))
	if len(text) > limit {
		text = "..." + text[len(text)-limit:]
	}
	return text
}
