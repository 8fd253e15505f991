package separation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"voiceover/internal/logging"
	"voiceover/internal/services"
)

// Factory starts a model backend by name.
type Factory func(ctx context.Context, name string) (Model, error)

// Loader starts each named model at most once and hands out the shared instance.
type Loader struct {
	factory Factory
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	models map[string]Model
}

// NewLoader builds a Loader. timeout bounds each backend start (0 = no bound).
func NewLoader(factory Factory, timeout time.Duration, logger *slog.Logger) *Loader {
	return &Loader{
		factory: factory,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "model-loader"),
		models:  make(map[string]Model),
	}
}

// Load returns the model registered under name, starting it on first use.
// Errors carry services.ErrModelLoad.
func (l *Loader) Load(ctx context.Context, name string) (Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrModelLoad, "load", "", "model name required", services.ErrConfiguration)
	}
	if l == nil || l.factory == nil {
		return nil, services.Wrap(services.ErrModelLoad, "load", name, "no model factory configured", services.ErrConfiguration)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if model, ok := l.models[name]; ok {
		return model, nil
	}

	loadCtx := ctx
	cancel := func() {}
	if l.timeout > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}
	defer cancel()

	start := time.Now()
	model, err := l.factory(loadCtx, name)
	if err != nil {
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", services.ErrTimeout, err)
		}
		if errors.Is(err, services.ErrModelLoad) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrModelLoad, "load", name, "", err)
	}
	info := model.Info()
	if len(info.Sources) == 0 || info.SampleRate <= 0 || info.Channels <= 0 {
		_ = model.Close()
		return nil, services.Wrap(services.ErrModelLoad, "load", name, "model published an incomplete contract", services.ErrValidation)
	}
	l.models[name] = model
	l.logger.Info("separation model loaded",
		logging.String("model", info.Name),
		logging.String("device", info.Device),
		logging.Int("sample_rate", info.SampleRate),
		logging.Int("channels", info.Channels),
		logging.String("sources", strings.Join(info.Sources, ",")),
		logging.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
	)
	return model, nil
}

// Loaded lists the info of every started model, sorted by name.
func (l *Loader) Loaded() []ModelInfo {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ModelInfo, 0, len(l.models))
	for _, model := range l.models {
		out = append(out, model.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close shuts down every started model.
func (l *Loader) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for name, model := range l.models {
		if err := model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(l.models, name)
	}
	return errors.Join(errs...)
}
