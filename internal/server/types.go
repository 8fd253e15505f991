package server

import (
	"voiceover/internal/clips"
	"voiceover/internal/runstore"
	"voiceover/internal/separation"
)

// RootResponse is returned by GET /. Models lists the separation models
// this process has started.
type RootResponse struct {
	Message string                 `json:"message"`
	Models  []separation.ModelInfo `json:"models"`
}

// ClipListResponse wraps the clip catalog.
type ClipListResponse struct {
	Clips []clips.Clip `json:"clips"`
}

// SaveRecordingResponse is returned by POST /api/save-recording.
type SaveRecordingResponse struct {
	RecordingID   string `json:"recording_id"`
	RecordingPath string `json:"recording_path"`
}

// MergeResponse reports a merge outcome. Failures set Error instead of the
// merged video fields.
type MergeResponse struct {
	Success        bool   `json:"success"`
	MergedVideoID  string `json:"merged_video_id,omitempty"`
	MergedVideoURL string `json:"merged_video_url,omitempty"`
	WithBackground bool   `json:"with_background,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ProcessClipResponse is returned by POST /api/process-clip.
type ProcessClipResponse struct {
	ClipID            string `json:"clip_id"`
	State             string `json:"state"`
	ProcessedAudioURL string `json:"processed_audio_url,omitempty"`
	Frames            int    `json:"frames,omitempty"`
	Attempts          int    `json:"attempts,omitempty"`
	DurationMS        int64  `json:"duration_ms"`
}

// RunListResponse wraps recent ledger runs.
type RunListResponse struct {
	Runs []runstore.Run `json:"runs"`
}

// RunDetailResponse is one run with its per-clip rows.
type RunDetailResponse struct {
	Run   runstore.Run          `json:"run"`
	Clips []runstore.ClipResult `json:"clips"`
}

// ThumbnailsMissingResponse mirrors the listing shape when the thumbnails
// directory does not exist.
type ThumbnailsMissingResponse struct {
	Error       string `json:"error"`
	CheckedPath string `json:"checked_path"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
