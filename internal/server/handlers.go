package server

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"voiceover/internal/clips"
	"voiceover/internal/fileutil"
	"voiceover/internal/logging"
	"voiceover/internal/pipeline"
	"voiceover/internal/separation"
	"voiceover/internal/services"
)

const (
	defaultRunLimit = 20
	// multipartMemory is how much of an upload is buffered before spilling
	// to a temp file.
	multipartMemory = 8 << 20
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	resp := RootResponse{Message: "Voiceover workspace API", Models: []separation.ModelInfo{}}
	if s.models != nil {
		resp.Models = append(resp.Models, s.models.Loaded()...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	if list == nil {
		list = []clips.Clip{}
	}
	writeJSON(w, http.StatusOK, ClipListResponse{Clips: list})
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	clip, err := s.catalog.Get(r.Context(), r.PathValue("clip_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "Clip not found")
		return
	}
	writeJSON(w, http.StatusOK, clip)
}

func (s *Server) handleRecordVoice(w http.ResponseWriter, r *http.Request) {
	clipID, file, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rec, err := s.recordings.Save(r.Context(), clipID, file)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveRecording(w http.ResponseWriter, r *http.Request) {
	clipID, file, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rec, err := s.recordings.Save(r.Context(), clipID, file)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, SaveRecordingResponse{RecordingID: rec.ID, RecordingPath: rec.URL})
}

// readUpload parses the clip_id and audio_data multipart fields.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, multipart.File, bool) {
	if s.uploadLimit > 0 {
		// Headroom for the form fields and multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "recording too large")
			return "", nil, false
		}
		s.writeError(w, http.StatusBadRequest, "expected multipart form with clip_id and audio_data")
		return "", nil, false
	}
	clipID := strings.TrimSpace(r.FormValue("clip_id"))
	if clipID == "" {
		s.writeError(w, http.StatusBadRequest, "clip_id is required")
		return "", nil, false
	}
	file, _, err := r.FormFile("audio_data")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio_data is required")
		return "", nil, false
	}
	return clipID, file, true
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recordings.Open(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "Recording not found")
		return
	}
	http.ServeFile(w, r, rec.Path)
}

func (s *Server) handleProxyRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.recordings.Open(id)
	if err != nil {
		s.writeServiceError(w, r, err, "Recording not found: "+id)
		return
	}
	w.Header().Set("Content-Type", "audio/webm")
	http.ServeFile(w, r, rec.Path)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	thumb, err := s.catalog.Thumbnail(r.PathValue("clip_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "Clip not found")
		return
	}
	if !thumb.Generated() {
		w.Header().Set("Content-Type", thumb.ContentType)
		http.ServeFile(w, r, thumb.Path)
		return
	}
	w.Header().Set("Content-Type", thumb.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(thumb.Body)
}

func (s *Server) handleListThumbnails(w http.ResponseWriter, _ *http.Request) {
	listing, err := s.catalog.ListThumbnails()
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeJSON(w, http.StatusOK, ThumbnailsMissingResponse{
				Error:       "Directory does not exist",
				CheckedPath: listing.Directory,
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleProcessedAudio(w http.ResponseWriter, r *http.Request) {
	clipID := r.PathValue("clip_id")
	if !clips.ValidID(clipID) {
		s.writeError(w, http.StatusBadRequest, "invalid clip id")
		return
	}
	path, ok := s.catalog.ProcessedAudioPath(clipID)
	if !ok {
		s.logger.Debug("no processed audio for clip", logging.String(logging.FieldClipID, clipID))
		s.writeError(w, http.StatusNotFound, "Processed audio not found")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	clipID := strings.TrimSpace(r.FormValue("clip_id"))
	recordingID := strings.TrimSpace(r.FormValue("recording_id"))
	if clipID == "" || recordingID == "" {
		s.writeError(w, http.StatusBadRequest, "clip_id and recording_id are required")
		return
	}
	keepBackground, _ := strconv.ParseBool(r.FormValue("keep_background"))

	merged, err := s.recordings.Merge(r.Context(), clipID, recordingID, keepBackground)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			logging.ErrorWithContext(s.logger, "merge failed", "merge_failed",
				logging.String(logging.FieldClipID, clipID),
				logging.String("recording_id", recordingID),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ffmpeg output in the log"),
			)
			writeJSON(w, status, MergeResponse{Error: "Failed to merge: " + err.Error()})
			return
		}
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{
		Success:        true,
		MergedVideoID:  merged.ID,
		MergedVideoURL: merged.URL,
		WithBackground: merged.WithBackground,
	})
}

func (s *Server) handleMergedVideo(w http.ResponseWriter, r *http.Request) {
	merged, err := s.recordings.MergedInfo(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, MergeResponse{Error: "Merged video not found"})
			return
		}
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{
		Success:        true,
		MergedVideoID:  merged.ID,
		MergedVideoURL: merged.URL,
	})
}

func (s *Server) handleProcessClip(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "clip processing is not available")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	clipID := strings.TrimSpace(r.FormValue("clip_id"))
	video, err := s.catalog.VideoPath(clipID)
	if err != nil {
		s.writeServiceError(w, r, err, "Clip not found")
		return
	}

	s.processMu.Lock()
	defer s.processMu.Unlock()

	ctx := services.WithClipID(r.Context(), clipID)
	res, err := s.processor.ProcessOne(ctx, video, s.outputDir)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	resp := ProcessClipResponse{
		ClipID:     clipID,
		State:      string(res.State),
		Frames:     res.Frames,
		Attempts:   res.Attempts,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Succeeded() {
		resp.ProcessedAudioURL = "/processed-audio/" + clipID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger is not available")
		return
	}
	limit := defaultRunLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger is not available")
		return
	}
	run, err := s.runs.FindRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	results, err := s.runs.ListClipResults(r.Context(), run.ID)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, RunDetailResponse{Run: *run, Clips: results})
}

// writeServiceError maps err to a status code. notFound, when set, replaces
// the detail of 404 responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusNotFound && notFound != "" {
		detail = notFound
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	}
	s.writeError(w, status, detail)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, fileutil.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrExtraction):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
