package demucs

import (
	"strconv"
	"strings"
	"time"

	"voiceover/internal/config"
)

const (
	// PypiIndexURL is the fallback index when a torch wheel index is pinned.
	PypiIndexURL = "https://pypi.org/simple"
	// ScriptName is the worker file written into the work directory.
	ScriptName = "demucs_worker.py"

	launcherUV     = "uv"
	launcherPython = "python"
)

// Config controls how the worker is launched and how it runs inference.
type Config struct {
	Launcher      string
	UVBinary      string
	PythonBinary  string
	Packages      []string
	TorchIndexURL string
	Device        string
	Split         bool
	Overlap       float64
	Shifts        int
	// ScriptDir receives the embedded worker script.
	ScriptDir string
	// LoadTimeout bounds the handshake when a dead worker is relaunched.
	LoadTimeout      time.Duration
	InferenceTimeout time.Duration
	// CloseTimeout bounds the graceful shutdown before the worker is killed.
	CloseTimeout time.Duration
}

// ConfigFromApp derives the worker config from the application config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Launcher:         cfg.Separation.Launcher,
		UVBinary:         cfg.Separation.UVBinary,
		PythonBinary:     cfg.Separation.PythonBinary,
		Packages:         append([]string(nil), cfg.Separation.Packages...),
		TorchIndexURL:    cfg.Separation.TorchIndexURL,
		Device:           cfg.Separation.Device,
		Split:            cfg.Separation.Split,
		Overlap:          cfg.Separation.Overlap,
		Shifts:           cfg.Separation.Shifts,
		ScriptDir:        cfg.Paths.WorkDir,
		LoadTimeout:      cfg.LoadTimeout(),
		InferenceTimeout: cfg.InferenceTimeout(),
		CloseTimeout:     5 * time.Second,
	}
}

// Command returns the executable and arguments that start the worker for model.
func (c Config) Command(scriptPath, model string) (string, []string) {
	workerArgs := []string{
		scriptPath,
		"--model", model,
		"--device", c.device(),
		"--overlap", strconv.FormatFloat(c.Overlap, 'f', -1, 64),
		"--shifts", strconv.Itoa(c.Shifts),
	}
	if c.Split {
		workerArgs = append(workerArgs, "--split")
	} else {
		workerArgs = append(workerArgs, "--no-split")
	}

	if strings.EqualFold(c.Launcher, launcherPython) {
		return c.pythonBinary(), workerArgs
	}

	args := []string{"run", "--no-project", "--quiet"}
	if c.TorchIndexURL != "" && c.device() != "cpu" {
		args = append(args,
			"--index-url", c.TorchIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	}
	packages := c.Packages
	if len(packages) == 0 {
		packages = []string{"demucs"}
	}
	for _, pkg := range packages {
		args = append(args, "--with", pkg)
	}
	args = append(args, "python")
	return c.uvBinary(), append(args, workerArgs...)
}

// Binary is the executable the worker depends on, for dependency checks.
func (c Config) Binary() string {
	if strings.EqualFold(c.Launcher, launcherPython) {
		return c.pythonBinary()
	}
	return c.uvBinary()
}

func (c Config) device() string {
	if d := strings.ToLower(strings.TrimSpace(c.Device)); d != "" {
		return d
	}
	return "auto"
}

func (c Config) uvBinary() string {
	if b := strings.TrimSpace(c.UVBinary); b != "" {
		return b
	}
	return launcherUV
}

func (c Config) pythonBinary() string {
	if b := strings.TrimSpace(c.PythonBinary); b != "" {
		return b
	}
	return "python3"
}
