package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"voiceover/internal/clips"
	"voiceover/internal/config"
	"voiceover/internal/logging"
	"voiceover/internal/pipeline"
	"voiceover/internal/recordings"
	"voiceover/internal/runstore"
	"voiceover/internal/separation"
)

// ClipProcessor runs the pipeline for one clip. *pipeline.Batch implements it.
type ClipProcessor interface {
	ProcessOne(ctx context.Context, clipPath, outputDir string) (pipeline.ClipResult, error)
}

// RunLister reads the run ledger. *runstore.Store implements it.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]runstore.Run, error)
	FindRun(ctx context.Context, idOrPrefix string) (*runstore.Run, error)
	ListClipResults(ctx context.Context, runID string) ([]runstore.ClipResult, error)
}

// ModelLister reports the separation models started so far.
// *separation.Loader implements it.
type ModelLister interface {
	Loaded() []separation.ModelInfo
}

// Options wires the collaborators behind the routes. Processor and Runs may
// be nil; their routes then answer 503.
type Options struct {
	Catalog    *clips.Catalog
	Recordings *recordings.Store
	Processor  ClipProcessor
	Runs       RunLister
	Models     ModelLister
	Logger     *slog.Logger
}

// Server is the HTTP workspace.
type Server struct {
	bind            string
	token           string
	origins         []string
	contentDir      string
	outputDir       string
	uploadLimit     int64
	shutdownTimeout time.Duration

	catalog    *clips.Catalog
	recordings *recordings.Store
	processor  ClipProcessor
	runs       RunLister
	models     ModelLister
	logger     *slog.Logger

	// processMu serializes pipeline requests so they share one model
	// worker without contending for the output lock.
	processMu sync.Mutex

	handler http.Handler
}

// New builds a Server from configuration.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		bind:            strings.TrimSpace(cfg.Paths.APIBind),
		token:           strings.TrimSpace(cfg.Paths.APIToken),
		origins:         cfg.Server.AllowedOrigins,
		contentDir:      cfg.Paths.ContentDir,
		outputDir:       cfg.Paths.ProcessedAudioDir,
		uploadLimit:     cfg.MaxUploadBytes(),
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
		catalog:         opts.Catalog,
		recordings:      opts.Recordings,
		processor:       opts.Processor,
		runs:            opts.Runs,
		models:          opts.Models,
		logger:          logging.NewComponentLogger(opts.Logger, "api-server"),
	}
	s.handler = corsMiddleware(s.origins, s.routes())
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.HandlerFunc { return authMiddleware(s.token, h) }

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /clips", s.handleClips)
	mux.HandleFunc("GET /api/clips", s.handleClips)
	mux.HandleFunc("GET /api/clips/{clip_id}", s.handleClip)
	mux.HandleFunc("POST /record-voice", auth(s.handleRecordVoice))
	mux.HandleFunc("POST /api/save-recording", auth(s.handleSaveRecording))
	mux.HandleFunc("GET /recordings/{id}", s.handleRecording)
	mux.HandleFunc("GET /proxy-recording/{id}", s.handleProxyRecording)
	mux.HandleFunc("GET /thumbnail/{clip_id}", s.handleThumbnail)
	mux.HandleFunc("GET /list-thumbnails", s.handleListThumbnails)
	mux.HandleFunc("GET /processed-audio/{clip_id}", s.handleProcessedAudio)
	mux.HandleFunc("POST /api/merge-audio-video", auth(s.handleMerge))
	mux.HandleFunc("GET /api/merged-video/{id}", s.handleMergedVideo)
	mux.HandleFunc("POST /api/process-clip", auth(s.handleProcessClip))
	mux.HandleFunc("GET /api/runs", auth(s.handleRuns))
	mux.HandleFunc("GET /api/runs/{id}", auth(s.handleRun))
	if s.contentDir != "" {
		mux.Handle("GET /content/", http.StripPrefix(clips.ContentPrefix+"/", http.FileServer(http.Dir(s.contentDir))))
	}
	return mux
}

// Run listens on the configured bind address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// process-clip holds its response open for the whole separation.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
		logging.String(logging.FieldEventType, "server_start"),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(s.logger, "api server shutdown incomplete", "server_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight requests were cut off"),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout_seconds"),
		)
		_ = srv.Close()
	}
	s.logger.Info("api server stopped", logging.String(logging.FieldEventType, "server_stop"))
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
