package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"voiceover/internal/config"
)

// CheckNotificationsFromConfig summarizes ntfy configuration without sending.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	var events []string
	if cfg.Notifications.BatchStarted {
		events = append(events, "batch started")
	}
	if cfg.Notifications.BatchCompleted {
		events = append(events, "batch completed")
	}
	if cfg.Notifications.ClipFailed {
		events = append(events, "clip failed")
	}
	if len(events) == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (all events muted)", topic)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", topic, strings.Join(events, ", "))}
}

// DeviceProbe reports the accelerator visible to the separation worker.
type DeviceProbe struct {
	Requested string
	Detected  bool
	Name      string
	MemoryMiB string
}

// ProbeDevice queries nvidia-smi for the first GPU. A cpu request skips the
// probe entirely.
func ProbeDevice(requested string) DeviceProbe {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		requested = "auto"
	}
	probe := DeviceProbe{Requested: requested}
	if requested == "cpu" {
		return probe
	}
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return probe
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		return probe
	}
	return parseDeviceLine(probe, string(output))
}

func parseDeviceLine(probe DeviceProbe, output string) DeviceProbe {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	if line == "" {
		return probe
	}
	name, memory, _ := strings.Cut(line, ",")
	probe.Detected = true
	probe.Name = strings.TrimSpace(name)
	probe.MemoryMiB = strings.TrimSpace(memory)
	return probe
}

// DeviceDetail renders a display-friendly summary for status output.
func (p DeviceProbe) DeviceDetail() string {
	switch {
	case p.Requested == "cpu":
		return "CPU (configured)"
	case !p.Detected && p.Requested == "cuda":
		return "CUDA requested but no GPU detected"
	case !p.Detected:
		return "No GPU detected, separation runs on CPU"
	case p.MemoryMiB != "":
		return fmt.Sprintf("%s (%s MiB)", p.Name, p.MemoryMiB)
	default:
		return p.Name
	}
}

// Result converts the probe into a status row. Only an explicit cuda request
// without a GPU fails.
func (p DeviceProbe) Result() Result {
	return Result{
		Name:   "Separation device",
		Passed: p.Detected || p.Requested != "cuda",
		Detail: p.DeviceDetail(),
	}
}
