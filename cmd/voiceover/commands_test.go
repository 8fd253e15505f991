package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voiceover/internal/clips"
	"voiceover/internal/notifications"
	"voiceover/internal/runstore"
	"voiceover/internal/testsupport"
)

func TestProcessCommandReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	env.clip(t, "good")
	testsupport.WriteClip(t, env.cfg.Paths.ClipsDir, "broken", nil)

	out, err := env.run(t, "process")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 clips failed") {
		t.Fatalf("expected failure count error, got %v", err)
	}
	requireContains(t, out, "good")
	requireContains(t, out, "broken")
	requireContains(t, out, "1 processed, 1 failed, 0 skipped")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.ProcessedAudioDir, "good.wav")); err != nil {
		t.Fatalf("expected residual for good clip: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.ProcessedAudioDir, "broken.wav")); !os.IsNotExist(err) {
		t.Fatalf("expected no residual for broken clip, got %v", err)
	}

	events := env.notifier.Events()
	if len(events) == 0 || events[0] != notifications.EventBatchStarted || events[len(events)-1] != notifications.EventBatchCompleted {
		t.Fatalf("unexpected notification sequence %v", events)
	}
}

func TestProcessCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.clip(t, "alpha")
	env.clip(t, "beta")

	out, err := env.run(t, "process", "--json", "--workers", "2")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var summary summaryJSON
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Total != 2 || summary.Processed != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.RunID == "" || summary.Model != "htdemucs" {
		t.Fatalf("expected run id and model, got %+v", summary)
	}
	if len(summary.Clips) != 2 || summary.Clips[0].ClipID != "alpha" || summary.Clips[1].ClipID != "beta" {
		t.Fatalf("expected clips in discovery order, got %+v", summary.Clips)
	}
	if summary.Clips[0].Frames != 4410 {
		t.Fatalf("expected 4410 frames, got %d", summary.Clips[0].Frames)
	}
}

func TestProcessCommandCustomDirectories(t *testing.T) {
	env := setupCLITestEnv(t)
	clipsDir := filepath.Join(testsupport.BaseDir(env.cfg), "elsewhere")
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	w := testsupport.Tone(44100, 2, 2205, 0.25)
	testsupport.WriteClip(t, clipsDir, "outside", &w)
	outputDir := filepath.Join(testsupport.BaseDir(env.cfg), "residuals")

	if _, err := env.run(t, "process", "--clips", clipsDir, "--output", outputDir); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "outside.wav")); err != nil {
		t.Fatalf("expected residual in custom output dir: %v", err)
	}
}

func TestProcessCommandEmptyDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "process")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "No clips found")
}

func TestProcessClipCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.clip(t, "single")

	out, err := env.run(t, "process-clip", path)
	if err != nil {
		t.Fatalf("process-clip: %v", err)
	}
	requireContains(t, out, filepath.Join(env.cfg.Paths.ProcessedAudioDir, "single.wav"))
	requireContains(t, out, "4410 frames")

	if _, err := env.run(t, "process-clip", filepath.Join(env.cfg.Paths.ClipsDir, "missing.mp4")); err == nil {
		t.Fatal("expected error for missing clip")
	}
}

func TestClipsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "clips")
	if err != nil {
		t.Fatalf("clips: %v", err)
	}
	requireContains(t, out, "No clips in")

	env.clip(t, "intro_scene")
	env.clip(t, "outro")
	if _, err := env.run(t, "process-clip", filepath.Join(env.cfg.Paths.ClipsDir, "outro.mp4")); err != nil {
		t.Fatalf("process-clip: %v", err)
	}

	out, err = env.run(t, "clips", "--json")
	if err != nil {
		t.Fatalf("clips --json: %v", err)
	}
	var list []clips.Clip
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode clips: %v\n%s", err, out)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(list))
	}
	processed := map[string]bool{}
	for _, c := range list {
		processed[c.ID] = c.HasProcessedAudio
	}
	if processed["intro_scene"] || !processed["outro"] {
		t.Fatalf("unexpected processed flags %v", processed)
	}

	out, err = env.run(t, "clips")
	if err != nil {
		t.Fatalf("clips: %v", err)
	}
	requireContains(t, out, "intro_scene")
	requireContains(t, out, "PROCESSED")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "outro") && !strings.Contains(line, "yes") {
			t.Fatalf("outro row should be marked processed: %q", line)
		}
		if strings.Contains(line, "intro_scene") && !strings.Contains(line, "no") {
			t.Fatalf("intro_scene row should be unprocessed: %q", line)
		}
	}
}

func TestRunsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	env.clip(t, "ledger")
	if _, err := env.run(t, "process"); err != nil {
		t.Fatalf("process: %v", err)
	}

	out, err = env.run(t, "runs", "--json")
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var runs []runstore.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != runstore.RunCompleted || runs[0].Processed != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	out, err = env.run(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, runs[0].ID[:8])
	requireContains(t, out, string(runstore.RunCompleted))

	out, err = env.run(t, "runs", "show", runs[0].ID[:8])
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "Run:      "+runs[0].ID)
	requireContains(t, out, "ledger")

	if _, err := env.run(t, "runs", "show", "ffffffff-dead"); err == nil {
		t.Fatal("expected error for unknown run")
	}

	if _, err := env.run(t, "runs", "prune", "--older-than", "0s"); err == nil {
		t.Fatal("expected error for non-positive cutoff")
	}
	out, err = env.run(t, "runs", "prune", "--older-than", "720h")
	if err != nil {
		t.Fatalf("runs prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 run(s)")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsUnknownKeys(t *testing.T) {
	env := setupCLITestEnv(t)
	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("\n[bogus]\nkey = 1\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := env.run(t, "config", "validate"); err == nil {
		t.Fatal("expected validation error for unknown section")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"== Configuration ==",
		env.configPath,
		"htdemucs (commentary stem: vocals)",
		"Separation device",
		"Clips directory",
		"Clip work dirs",
		"== Dependencies ==",
		"FFmpeg",
		"Last run",
		"none recorded",
	} {
		requireContains(t, out, want)
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	events := env.notifier.Events()
	if len(events) != 1 || events[0] != notifications.EventTest {
		t.Fatalf("expected one test event, got %v", events)
	}
}
