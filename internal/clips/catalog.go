package clips

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"voiceover/internal/config"
	"voiceover/internal/logging"
	"voiceover/internal/media/ffprobe"
	"voiceover/internal/pipeline"
	"voiceover/internal/services"
)

// ContentPrefix is the URL prefix under which the content directory is served.
const ContentPrefix = "/content"

// Clip describes a source video as presented to the UI.
type Clip struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	File              string  `json:"file"`
	URL               string  `json:"url"`
	Path              string  `json:"path"`
	DurationSeconds   float64 `json:"duration_seconds,omitempty"`
	HasProcessedAudio bool    `json:"has_processed_audio"`
}

// Prober inspects media files. *ffprobe.Prober implements it.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Catalog lists clips and their derived assets.
type Catalog struct {
	clipsDir      string
	processedDir  string
	thumbnailsDir string
	contentDir    string
	extension     string
	prober        Prober
	probeTimeout  time.Duration
	logger        *slog.Logger
}

// NewCatalog builds a catalog over the configured content directories.
// prober may be nil, in which case durations are omitted.
func NewCatalog(cfg *config.Config, prober Prober, logger *slog.Logger) *Catalog {
	return &Catalog{
		clipsDir:      cfg.Paths.ClipsDir,
		processedDir:  cfg.Paths.ProcessedAudioDir,
		thumbnailsDir: cfg.Paths.ThumbnailsDir,
		contentDir:    cfg.Paths.ContentDir,
		extension:     cfg.Batch.ClipExtension,
		prober:        prober,
		probeTimeout:  10 * time.Second,
		logger:        logging.NewComponentLogger(logger, "catalog"),
	}
}

// ClipsDir returns the directory clips are read from.
func (c *Catalog) ClipsDir() string { return c.clipsDir }

// List returns every clip sorted by file name. A missing clips directory
// yields an empty list.
func (c *Catalog) List(ctx context.Context) ([]Clip, error) {
	found, err := pipeline.Discover(c.clipsDir, c.extension)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return []Clip{}, nil
		}
		return nil, err
	}
	out := make([]Clip, 0, len(found))
	for _, clip := range found {
		out = append(out, c.describe(ctx, clip))
	}
	return out, nil
}

// Get returns a single clip by ID.
func (c *Catalog) Get(ctx context.Context, id string) (Clip, error) {
	path, err := c.VideoPath(id)
	if err != nil {
		return Clip{}, err
	}
	return c.describe(ctx, pipeline.NewClip(path)), nil
}

// VideoPath resolves the video file for id, failing with services.ErrNotFound
// when it does not exist and services.ErrValidation for unsafe IDs.
func (c *Catalog) VideoPath(id string) (string, error) {
	if !ValidID(id) {
		return "", services.Wrap(services.ErrValidation, "catalog", "", "invalid clip id", nil)
	}
	path := filepath.Join(c.clipsDir, id+c.extension)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path, nil
	}
	// Discovery matches extensions case-insensitively, so Intro.MP4 is clip "Intro".
	found, err := pipeline.Discover(c.clipsDir, c.extension)
	if err == nil {
		for _, clip := range found {
			if clip.ID == id {
				return clip.Path, nil
			}
		}
	}
	return "", services.Wrap(services.ErrNotFound, "catalog", "", "Clip not found", nil)
}

// ProcessedAudioPath returns the residual for id when it exists.
func (c *Catalog) ProcessedAudioPath(id string) (string, bool) {
	if !ValidID(id) {
		return "", false
	}
	path := pipeline.OutputPath(c.processedDir, pipeline.Clip{ID: id})
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func (c *Catalog) describe(ctx context.Context, clip pipeline.Clip) Clip {
	file := filepath.Base(clip.Path)
	url := c.contentURL(clip.Path)
	_, processed := c.ProcessedAudioPath(clip.ID)
	out := Clip{
		ID:                clip.ID,
		Name:              DisplayName(clip.ID),
		File:              file,
		URL:               url,
		Path:              url,
		HasProcessedAudio: processed,
	}
	if c.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
		if result, err := c.prober.Inspect(probeCtx, clip.Path); err == nil {
			if d := result.DurationSeconds(); d > 0 && !math.IsNaN(d) {
				out.DurationSeconds = d
			}
		} else {
			c.logger.Debug("clip probe failed",
				logging.String(logging.FieldClipID, clip.ID),
				logging.Error(err),
			)
		}
	}
	return out
}

// contentURL maps a file under the content directory to its served URL.
func (c *Catalog) contentURL(path string) string {
	rel, err := filepath.Rel(c.contentDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ContentPrefix + "/clips/" + filepath.Base(path)
	}
	return ContentPrefix + "/" + filepath.ToSlash(rel)
}

// DisplayName turns a clip ID into a title: "intro_scene" → "Intro Scene".
func DisplayName(id string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(id, "_", " "))
}

// ValidID reports whether id is safe to join onto a directory.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}
