package runstore

import "time"

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	// RunPartial means the batch finished but at least one clip failed.
	RunPartial   RunStatus = "completed_with_failures"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one invocation of the batch orchestrator (or a single-clip request).
type Run struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	ClipsDir   string    `json:"clips_dir,omitempty"`
	OutputDir  string    `json:"output_dir,omitempty"`
	Model      string    `json:"model,omitempty"`
	Device     string    `json:"device,omitempty"`
	Total      int       `json:"clips_total"`
	Processed  int       `json:"clips_processed"`
	Failed     int       `json:"clips_failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Duration is the wall time of a finished run, or the elapsed time so far.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ClipResult is the latest known state of one clip within a run.
type ClipResult struct {
	RunID        string    `json:"run_id"`
	ClipID       string    `json:"clip_id"`
	SourcePath   string    `json:"source_path,omitempty"`
	State        string    `json:"state"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	Frames       int       `json:"frames,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
