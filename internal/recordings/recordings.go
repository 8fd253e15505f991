package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"voiceover/internal/clips"
	"voiceover/internal/config"
	"voiceover/internal/fileutil"
	"voiceover/internal/logging"
	"voiceover/internal/media/ffmpeg"
	"voiceover/internal/services"
)

const (
	recordingExt = ".webm"
	mergedSuffix = "_merged.mp4"
)

// Recording is a saved voice-over take for a clip.
type Recording struct {
	ID        string `json:"recording_id"`
	ClipID    string `json:"clip_id,omitempty"`
	Path      string `json:"-"`
	URL       string `json:"audio_path"`
	VideoURL  string `json:"video_path,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Merged is a clip re-muxed with a voice-over.
type Merged struct {
	ID             string `json:"merged_video_id"`
	Path           string `json:"-"`
	URL            string `json:"merged_video_url"`
	WithBackground bool   `json:"with_background,omitempty"`
}

// Muxer combines video and audio. *ffmpeg.Muxer implements it.
type Muxer interface {
	Merge(ctx context.Context, req ffmpeg.MergeRequest) error
}

// Store saves recordings and produces merged videos.
type Store struct {
	dir       string
	mergedDir string
	limit     int64
	catalog   *clips.Catalog
	muxer     Muxer
	logger    *slog.Logger
}

// New builds a Store over the configured recordings and merged directories.
func New(cfg *config.Config, catalog *clips.Catalog, muxer Muxer, logger *slog.Logger) *Store {
	return &Store{
		dir:       cfg.Paths.RecordingsDir,
		mergedDir: cfg.Paths.MergedDir,
		limit:     cfg.MaxUploadBytes(),
		catalog:   catalog,
		muxer:     muxer,
		logger:    logging.NewComponentLogger(logger, "recordings"),
	}
}

// Save stores r as a new recording for clipID. The ID is "<clip>_<uuid>".
// Bodies larger than the configured upload limit are rejected with
// services.ErrValidation and leave nothing behind.
func (s *Store) Save(ctx context.Context, clipID string, r io.Reader) (Recording, error) {
	clipID = strings.TrimSpace(clipID)
	if !clips.ValidID(clipID) {
		return Recording{}, services.Wrap(services.ErrValidation, "record", "", "invalid clip id", nil)
	}
	if err := ctx.Err(); err != nil {
		return Recording{}, err
	}
	id := clipID + "_" + uuid.NewString()
	path := filepath.Join(s.dir, id+recordingExt)
	n, err := fileutil.WriteAtomic(path, r, 0o644, s.limit)
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return Recording{}, services.Wrap(services.ErrValidation, "record", "", "recording too large", err)
		}
		return Recording{}, services.Wrap(services.ErrWrite, "record", "save", path, err)
	}
	s.logger.Info("saved recording",
		logging.String(logging.FieldClipID, clipID),
		logging.String("recording_id", id),
		logging.Int64("bytes", n),
		logging.String(logging.FieldEventType, "recording_saved"),
	)
	return Recording{
		ID:        id,
		ClipID:    clipID,
		Path:      path,
		URL:       clips.ContentPrefix + "/recordings/" + id + recordingExt,
		VideoURL:  clips.ContentPrefix + "/clips/" + clipID + ".mp4",
		SizeBytes: n,
	}, nil
}

// Open resolves an existing recording.
func (s *Store) Open(id string) (Recording, error) {
	if !clips.ValidID(id) {
		return Recording{}, services.Wrap(services.ErrValidation, "record", "", "invalid recording id", nil)
	}
	path := filepath.Join(s.dir, id+recordingExt)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Recording{}, services.Wrap(services.ErrNotFound, "record", "", "Recording not found: "+id, nil)
	}
	return Recording{
		ID:        id,
		Path:      path,
		URL:       clips.ContentPrefix + "/recordings/" + id + recordingExt,
		SizeBytes: info.Size(),
	}, nil
}

// Merge muxes the clip's video with a recording into
// <merged>/<recording id>_merged.mp4. With keepBackground and a processed
// residual for the clip, the residual is mixed under the voice-over;
// otherwise the clip's original audio is dropped.
func (s *Store) Merge(ctx context.Context, clipID, recordingID string, keepBackground bool) (Merged, error) {
	video, err := s.catalog.VideoPath(clipID)
	if err != nil {
		return Merged{}, err
	}
	rec, err := s.Open(recordingID)
	if err != nil {
		return Merged{}, err
	}
	if s.muxer == nil {
		return Merged{}, services.Wrap(services.ErrConfiguration, "merge", "", "no muxer configured", nil)
	}

	req := ffmpeg.MergeRequest{
		Video:     video,
		VoiceOver: rec.Path,
		Output:    s.mergedPath(recordingID),
	}
	if keepBackground {
		if residual, ok := s.catalog.ProcessedAudioPath(clipID); ok {
			req.Background = residual
		} else {
			logging.WarnWithContext(s.logger, "no processed audio for clip; merging voice-over only", "merge_background_missing",
				logging.String(logging.FieldClipID, clipID),
				logging.String(logging.FieldErrorHint, "run `voiceover process-clip` for this clip first"),
				logging.String(logging.FieldImpact, "merged video has no background audio"),
			)
		}
	}
	if err := s.muxer.Merge(ctx, req); err != nil {
		return Merged{}, fmt.Errorf("merge %s: %w", recordingID, err)
	}
	s.logger.Info("merged voice-over",
		logging.String(logging.FieldClipID, clipID),
		logging.String("recording_id", recordingID),
		logging.Bool("with_background", req.Background != ""),
		logging.String(logging.FieldEventType, "merge_complete"),
	)
	return Merged{
		ID:             recordingID,
		Path:           req.Output,
		URL:            mergedURL(recordingID),
		WithBackground: req.Background != "",
	}, nil
}

// MergedInfo returns an existing merged video.
func (s *Store) MergedInfo(id string) (Merged, error) {
	if !clips.ValidID(id) {
		return Merged{}, services.Wrap(services.ErrValidation, "merge", "", "invalid merged video id", nil)
	}
	path := s.mergedPath(id)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return Merged{}, services.Wrap(services.ErrNotFound, "merge", "", "Merged video not found", nil)
	}
	return Merged{ID: id, Path: path, URL: mergedURL(id)}, nil
}

func (s *Store) mergedPath(id string) string {
	return filepath.Join(s.mergedDir, id+mergedSuffix)
}

func mergedURL(id string) string {
	return clips.ContentPrefix + "/merged/" + id + mergedSuffix
}
