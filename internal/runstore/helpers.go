package runstore

import (
	"database/sql"
	"strings"
	"time"
)

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		status     string
		clipsDir   sql.NullString
		outputDir  sql.NullString
		model      sql.NullString
		device     sql.NullString
		errMsg     sql.NullString
		startedRaw string
		finished   sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&status,
		&clipsDir,
		&outputDir,
		&model,
		&device,
		&run.Total,
		&run.Processed,
		&run.Failed,
		&errMsg,
		&startedRaw,
		&finished,
	); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.ClipsDir = clipsDir.String
	run.OutputDir = outputDir.String
	run.Model = model.String
	run.Device = device.String
	run.Error = errMsg.String
	run.StartedAt = parseTime(startedRaw)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return &run, nil
}

func scanClip(row scanner) (*ClipResult, error) {
	var (
		result      ClipResult
		sourcePath  sql.NullString
		failedStage sql.NullString
		errorKind   sql.NullString
		errorMsg    sql.NullString
		outputPath  sql.NullString
		startedRaw  string
		updatedRaw  string
	)
	if err := row.Scan(
		&result.RunID,
		&result.ClipID,
		&sourcePath,
		&result.State,
		&failedStage,
		&errorKind,
		&errorMsg,
		&outputPath,
		&result.Frames,
		&result.Attempts,
		&result.DurationMS,
		&startedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	result.SourcePath = sourcePath.String
	result.FailedStage = failedStage.String
	result.ErrorKind = errorKind.String
	result.ErrorMessage = errorMsg.String
	result.OutputPath = outputPath.String
	result.StartedAt = parseTime(startedRaw)
	result.UpdatedAt = parseTime(updatedRaw)
	return &result, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
