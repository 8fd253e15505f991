package demucs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voiceover/internal/audio"
	"voiceover/internal/logging"
	"voiceover/internal/separation"
	"voiceover/internal/services"
)

var errWorkerClosed = errors.New("demucs worker closed")

// Worker is a separation.Model backed by a long-lived Demucs process. Calls
// to Separate are serialized; a worker that times out or dies is killed and
// relaunched on the next call.
type Worker struct {
	cfg    Config
	model  string
	launch Launcher
	logger *slog.Logger

	mu     sync.Mutex
	conn   *Conn
	stdout *bufio.Reader
	info   separation.ModelInfo
	nextID uint64
	closed bool
}

// NewFactory returns a separation.Factory that launches workers with launch,
// or the embedded script when launch is nil.
func NewFactory(cfg Config, launch Launcher, logger *slog.Logger) separation.Factory {
	if launch == nil {
		launch = ExecLauncher(cfg, logger)
	}
	return func(ctx context.Context, name string) (separation.Model, error) {
		w := &Worker{
			cfg:    cfg,
			model:  name,
			launch: launch,
			logger: logging.NewComponentLogger(logger, "demucs"),
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := w.startLocked(ctx); err != nil {
			return nil, err
		}
		return w, nil
	}
}

// Info returns the contract published in the worker handshake.
func (w *Worker) Info() separation.ModelInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := w.info
	info.Sources = append([]string(nil), w.info.Sources...)
	return info
}

// Separate runs the model on a normalized waveform.
func (w *Worker) Separate(ctx context.Context, wf audio.Waveform) (separation.StemSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", w.model, "", errWorkerClosed)
	}
	if err := separation.CheckInput(w.info, wf); err != nil {
		return separation.StemSet{}, err
	}
	if w.conn == nil {
		w.logger.Info("relaunching separation worker", logging.String("model", w.model))
		if err := w.relaunchLocked(ctx); err != nil {
			return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", "relaunch worker", "", err)
		}
	}

	callCtx := ctx
	cancel := func() {}
	if w.cfg.InferenceTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, w.cfg.InferenceTimeout)
	}
	defer cancel()

	w.nextID++
	id := w.nextID
	type result struct {
		stems []audio.Waveform
		err   error
		fatal bool
	}
	ch := make(chan result, 1)
	conn, stdout, info := w.conn, w.stdout, w.info
	go func() {
		if err := writeRequest(conn.Stdin, id, wf); err != nil {
			ch <- result{err: fmt.Errorf("send request: %w", err), fatal: true}
			return
		}
		var resp response
		if err := readHeader(stdout, &resp); err != nil {
			ch <- result{err: fmt.Errorf("read response: %w", err), fatal: true}
			return
		}
		if resp.ID != id {
			ch <- result{err: fmt.Errorf("response id %d does not match request %d", resp.ID, id), fatal: true}
			return
		}
		if resp.Error != "" {
			ch <- result{err: errors.New(resp.Error)}
			return
		}
		stems, err := readStems(stdout, resp, info.SampleRate)
		ch <- result{stems: stems, err: err, fatal: err != nil}
	}()

	start := time.Now()
	var res result
	select {
	case res = <-ch:
	case <-callCtx.Done():
		w.killLocked()
		<-ch
		if ctx.Err() != nil {
			return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", w.model, "cancelled", ctx.Err())
		}
		msg := fmt.Sprintf("no result after %s", w.cfg.InferenceTimeout)
		return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", w.model, msg, services.ErrTimeout)
	}

	if res.err != nil {
		if res.fatal {
			detail := w.stderrLocked()
			w.killLocked()
			err := services.Wrap(services.ErrInference, "separate", w.model, detail, res.err)
			return separation.StemSet{}, services.MarkTransient(err)
		}
		return separation.StemSet{}, services.Wrap(services.ErrInference, "separate", w.model, "worker reported failure", res.err)
	}

	set := separation.StemSet{Names: append([]string(nil), info.Sources...), Stems: res.stems}
	if err := separation.ValidateStemSet(info, wf, set); err != nil {
		return separation.StemSet{}, err
	}
	w.logger.Debug("separation complete",
		logging.Int("frames", wf.Frames()),
		logging.Int("stems", len(res.stems)),
		logging.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
	)
	return set, nil
}

// Close shuts the worker down, closing stdin first and killing it if it does
// not exit within CloseTimeout.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	conn := w.conn
	w.conn, w.stdout = nil, nil
	_ = conn.Stdin.Close()
	timeout := w.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-conn.Done:
		return nil
	case <-time.After(timeout):
		err := conn.Kill()
		<-conn.Done
		return err
	}
}

func (w *Worker) relaunchLocked(ctx context.Context) error {
	timeout := w.cfg.LoadTimeout
	if timeout <= 0 {
		timeout = w.cfg.InferenceTimeout
	}
	if timeout <= 0 {
		return w.startLocked(ctx)
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.startLocked(startCtx)
}

func (w *Worker) startLocked(ctx context.Context) error {
	conn, err := w.launch(ctx, w.model)
	if err != nil {
		return services.Wrap(services.ErrModelLoad, "load", w.model, "launch worker", fmt.Errorf("%w: %w", services.ErrExternalTool, err))
	}
	stdout := bufio.NewReaderSize(conn.Stdout, 1<<20)

	ch := make(chan error, 1)
	var hs handshake
	go func() { ch <- readHeader(stdout, &hs) }()

	select {
	case err = <-ch:
	case <-ctx.Done():
		_ = conn.Kill()
		<-ch
		<-conn.Done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrModelLoad, "load", w.model, "worker did not become ready", services.ErrTimeout)
		}
		return services.Wrap(services.ErrModelLoad, "load", w.model, "cancelled", ctx.Err())
	}

	fail := func(msg string, cause error) error {
		_ = conn.Kill()
		<-conn.Done
		if conn.Stderr != nil {
			if tail := strings.TrimSpace(conn.Stderr()); tail != "" {
				msg = msg + ": " + lastLine(tail)
			}
		}
		return services.Wrap(services.ErrModelLoad, "load", w.model, msg, cause)
	}
	if err != nil {
		return fail("read handshake", err)
	}
	if hs.Error != "" {
		return fail("worker failed to load model", errors.New(hs.Error))
	}
	if !hs.Ready {
		return fail("worker handshake not ready", services.ErrValidation)
	}

	info := separation.ModelInfo{
		Name:       w.model,
		SampleRate: hs.SampleRate,
		Channels:   hs.Channels,
		Sources:    hs.Sources,
		Device:     hs.Device,
	}
	if w.info.Name != "" && !sameContract(w.info, info) {
		return fail("relaunched worker published a different contract", services.ErrValidation)
	}
	w.conn, w.stdout, w.info = conn, stdout, info
	return nil
}

func (w *Worker) killLocked() {
	if w.conn == nil {
		return
	}
	_ = w.conn.Kill()
	<-w.conn.Done
	w.conn, w.stdout = nil, nil
}

func (w *Worker) stderrLocked() string {
	if w.conn == nil || w.conn.Stderr == nil {
		return ""
	}
	return lastLine(w.conn.Stderr())
}

func sameContract(a, b separation.ModelInfo) bool {
	if a.SampleRate != b.SampleRate || a.Channels != b.Channels || len(a.Sources) != len(b.Sources) {
		return false
	}
	for i := range a.Sources {
		if a.Sources[i] != b.Sources[i] {
			return false
		}
	}
	return true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
