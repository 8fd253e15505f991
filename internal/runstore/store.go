package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voiceover/internal/config"
)

// Store records batch runs and per-clip outcomes in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// Open opens the run ledger configured for cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.RunStorePath())
}

// OpenPath initializes or connects to the run ledger at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps foreign keys on.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a run in the running state. A blank ID is replaced with a
// fresh UUID; the stored run is returned.
func (s *Store) BeginRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunRunning
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, status, clips_dir, output_dir, model, device, clips_total, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Status,
		nullableString(run.ClipsDir),
		nullableString(run.OutputDir),
		nullableString(run.Model),
		nullableString(run.Device),
		run.Total,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status, counts, and error of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	res, err := s.exec(ctx,
		`UPDATE runs
         SET status = ?, clips_total = ?, clips_processed = ?, clips_failed = ?,
             model = COALESCE(?, model), device = COALESCE(?, device),
             error_message = ?, finished_at = ?
         WHERE id = ?`,
		run.Status,
		run.Total,
		run.Processed,
		run.Failed,
		nullableString(run.Model),
		nullableString(run.Device),
		nullableString(run.Error),
		formatTime(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, sql.ErrNoRows)
	}
	return nil
}

// RecordClip upserts the state of a clip within its run.
func (s *Store) RecordClip(ctx context.Context, result ClipResult) error {
	now := time.Now().UTC()
	if result.UpdatedAt.IsZero() {
		result.UpdatedAt = now
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = now
	}
	_, err := s.exec(ctx,
		`INSERT INTO clip_results (
            run_id, clip_id, source_path, state, failed_stage, error_kind, error_message,
            output_path, frames, attempts, duration_ms, started_at, updated_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (run_id, clip_id) DO UPDATE SET
            source_path = COALESCE(excluded.source_path, clip_results.source_path),
            state = excluded.state,
            failed_stage = excluded.failed_stage,
            error_kind = excluded.error_kind,
            error_message = excluded.error_message,
            output_path = COALESCE(excluded.output_path, clip_results.output_path),
            frames = MAX(excluded.frames, clip_results.frames),
            attempts = MAX(excluded.attempts, clip_results.attempts),
            duration_ms = excluded.duration_ms,
            updated_at = excluded.updated_at`,
		result.RunID,
		result.ClipID,
		nullableString(result.SourcePath),
		result.State,
		nullableString(result.FailedStage),
		nullableString(result.ErrorKind),
		nullableString(result.ErrorMessage),
		nullableString(result.OutputPath),
		result.Frames,
		result.Attempts,
		result.DurationMS,
		formatTime(result.StartedAt),
		formatTime(result.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("record clip %s: %w", result.ClipID, err)
	}
	return nil
}

const runColumns = "id, status, clips_dir, output_dir, model, device, clips_total, clips_processed, clips_failed, error_message, started_at, finished_at"

// GetRun fetches a run by ID, returning nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// FindRun resolves a full run ID or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()
	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", idOrPrefix)
	}
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

const clipColumns = "run_id, clip_id, source_path, state, failed_stage, error_kind, error_message, output_path, frames, attempts, duration_ms, started_at, updated_at"

// ListClipResults returns the clip outcomes of a run ordered by clip ID.
func (s *Store) ListClipResults(ctx context.Context, runID string) ([]ClipResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clip_results WHERE run_id = ? ORDER BY clip_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list clip results: %w", err)
	}
	defer rows.Close()
	var results []ClipResult
	for rows.Next() {
		result, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip result: %w", err)
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// LatestResult returns the most recent outcome recorded for a clip across all
// runs, or nil when the clip has never been processed.
func (s *Store) LatestResult(ctx context.Context, clipID string) (*ClipResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clip_results WHERE clip_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, clipID)
	result, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest result: %w", err)
	}
	return result, nil
}

// Prune deletes finished runs (and their clip results) that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE status != ? AND started_at < ?`,
		RunRunning, formatTime(cutoff.UTC()))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// MarkAbandoned moves runs for outputDir that are still marked running to
// failed. A crash leaves runs in that state; callers invoke this while holding
// the output directory lock, so no live run can match.
func (s *Store) MarkAbandoned(ctx context.Context, outputDir string) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = COALESCE(error_message, 'abandoned'), finished_at = ?
         WHERE status = ? AND output_dir = ?`,
		RunFailed, formatTime(time.Now().UTC()), RunRunning, outputDir)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return res.RowsAffected()
}
