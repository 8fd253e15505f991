package demucs

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"voiceover/internal/fileutil"
	"voiceover/internal/logging"
)

//go:embed worker.py
var workerScript []byte

// Conn is a running worker process.
type Conn struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	// Kill terminates the process immediately.
	Kill func() error
	// Done is closed once the process has exited.
	Done <-chan struct{}
	// Stderr returns the most recent diagnostic output, if any.
	Stderr func() string
}

// Launcher starts a worker for the named model.
type Launcher func(ctx context.Context, model string) (*Conn, error)

// ExecLauncher starts the embedded worker script as a subprocess.
func ExecLauncher(cfg Config, logger *slog.Logger) Launcher {
	logger = logging.NewComponentLogger(logger, "demucs-worker")
	return func(ctx context.Context, model string) (*Conn, error) {
		scriptPath, err := writeScript(cfg.ScriptDir)
		if err != nil {
			return nil, err
		}
		name, args := cfg.Command(scriptPath, model)
		// The worker outlives the context that started it; shutdown goes
		// through Conn.Kill or closing stdin.
		cmd := exec.Command(name, args...) //nolint:gosec
		// uv runs python as a child; a process group lets Kill reach both.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
		// Torch 2.6 changed torch.load default to weights_only=true, which
		// rejects older Demucs checkpoints.
		if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
			cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
		}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("worker stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("worker stdout: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("worker stderr: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", name, err)
		}
		logger.Debug("worker started",
			logging.String("command", name),
			logging.String("args", strings.Join(args, " ")),
			logging.Int("pid", cmd.Process.Pid),
		)

		tail := newTailBuffer(20)
		stderrDone := make(chan struct{})
		go func() {
			defer close(stderrDone)
			scanner := bufio.NewScanner(stderr)
			scanner.Buffer(make([]byte, 64<<10), 1<<20)
			for scanner.Scan() {
				line := scanner.Text()
				tail.add(line)
				logger.Debug("worker output", logging.String("line", line))
			}
		}()

		done := make(chan struct{})
		go func() {
			<-stderrDone
			err := cmd.Wait()
			logger.Debug("worker exited", logging.Error(err))
			close(done)
		}()

		return &Conn{
			Stdin:  stdin,
			Stdout: stdout,
			Kill: func() error {
				if cmd.Process == nil {
					return nil
				}
				if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
					return cmd.Process.Kill()
				}
				return nil
			},
			Done:   done,
			Stderr: tail.String,
		}, nil
	}
}

func writeScript(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worker script dir: %w", err)
	}
	path := filepath.Join(dir, ScriptName)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, workerScript) {
		return path, nil
	}
	if _, err := fileutil.WriteAtomic(path, bytes.NewReader(workerScript), 0o644, 0); err != nil {
		return "", fmt.Errorf("install worker script: %w", err)
	}
	return path, nil
}

type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
