package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"voiceover/internal/config"
	"voiceover/internal/logging"
	"voiceover/internal/media/ffmpeg"
	"voiceover/internal/notifications"
	"voiceover/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type fakeMuxer struct{}

func (fakeMuxer) Merge(_ context.Context, req ffmpeg.MergeRequest) error {
	return os.WriteFile(req.Output, []byte("merged"), 0o644)
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	model      *testsupport.FakeModel
	extractor  *testsupport.FakeExtractor
	notifier   *recordingNotifier
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("VOICEOVER_API_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Separation.Device = "cpu"
	cfg.Batch.MinFreeGiB = 0

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		model:      testsupport.NewFakeModel(),
		extractor:  &testsupport.FakeExtractor{},
		notifier:   &recordingNotifier{},
	}
}

func (e *cliTestEnv) clip(t *testing.T, id string) string {
	t.Helper()
	w := testsupport.Tone(44100, 2, 4410, 0.5)
	return testsupport.WriteClip(t, e.cfg.Paths.ClipsDir, id, &w)
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommandWith(appDeps{
		factory:   testsupport.FakeFactory(e.model, nil),
		extractor: e.extractor,
		muxer:     fakeMuxer{},
		notifier:  e.notifier,
		logger:    logging.NewNop(),
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
