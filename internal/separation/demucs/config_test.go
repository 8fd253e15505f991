package demucs

import (
	"slices"
	"testing"
	"time"

	"voiceover/internal/config"
)

func TestCommandUV(t *testing.T) {
	cfg := Config{
		Launcher:      "uv",
		Packages:      []string{"demucs", "soundfile"},
		TorchIndexURL: "https://download.pytorch.org/whl/cu128",
		Device:        "auto",
		Split:         true,
		Overlap:       0.25,
	}
	name, args := cfg.Command("/work/demucs_worker.py", "htdemucs")
	if name != "uv" {
		t.Fatalf("unexpected binary %q", name)
	}
	want := []string{
		"run", "--no-project", "--quiet",
		"--index-url", "https://download.pytorch.org/whl/cu128",
		"--extra-index-url", PypiIndexURL,
		"--with", "demucs", "--with", "soundfile",
		"python", "/work/demucs_worker.py",
		"--model", "htdemucs", "--device", "auto", "--overlap", "0.25", "--shifts", "0", "--split",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestCommandCPUSkipsTorchIndex(t *testing.T) {
	cfg := Config{Launcher: "uv", TorchIndexURL: "https://download.pytorch.org/whl/cu128", Device: "cpu"}
	_, args := cfg.Command("/w.py", "htdemucs")
	if slices.Contains(args, "--index-url") {
		t.Fatalf("cpu runs should use the default index: %v", args)
	}
	if !slices.Contains(args, "--no-split") || !slices.Contains(args, "demucs") {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestCommandPython(t *testing.T) {
	cfg := Config{Launcher: "python", PythonBinary: "/opt/venv/bin/python"}
	name, args := cfg.Command("/w.py", "htdemucs_ft")
	if name != "/opt/venv/bin/python" || args[0] != "/w.py" {
		t.Fatalf("unexpected command %s %v", name, args)
	}
	if cfg.Binary() != "/opt/venv/bin/python" {
		t.Fatalf("unexpected dependency binary %q", cfg.Binary())
	}
	if (Config{}).Binary() != "uv" {
		t.Fatal("uv should be the default launcher")
	}
}

func TestWriteScriptIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := writeScript(dir)
	if err != nil {
		t.Fatalf("writeScript: %v", err)
	}
	second, err := writeScript(dir)
	if err != nil {
		t.Fatalf("writeScript again: %v", err)
	}
	if first != second {
		t.Fatalf("script path changed: %q vs %q", first, second)
	}
}

func TestConfigFromAppCarriesTimeouts(t *testing.T) {
	app := config.Default()
	app.Separation.LoadTimeoutSeconds = 30
	app.Separation.InferenceTimeoutSeconds = 120
	cfg := ConfigFromApp(&app)
	if cfg.LoadTimeout != 30*time.Second || cfg.InferenceTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeouts: load=%s inference=%s", cfg.LoadTimeout, cfg.InferenceTimeout)
	}
}
