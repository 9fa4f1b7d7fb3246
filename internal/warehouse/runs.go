package warehouse

import (
	"context"
	"fmt"
	"time"
)

const runsTable = "etl_runs"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is one row of etl_runs
type RunRecord struct {
	RunID          string    `db:"run_id"`
	StartedAt      time.Time `db:"started_at"`
	FinishedAt     time.Time `db:"finished_at"`
	Status         string    `db:"status"`
	RowsLoaded     int64     `db:"rows_loaded"`
	ReportsWritten int       `db:"reports_written"`
	Error          *string   `db:"error"`
}

// RecordRun appends the run log row. The table is created by the database migrations.
func (w *Writer) RecordRun(ctx context.Context, run RunRecord) error {
	query, args, err := w.psql.Insert(runsTable).
		Columns("run_id", "started_at", "finished_at", "status", "rows_loaded", "reports_written", "error").
		Values(run.RunID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, run.RowsLoaded, run.ReportsWritten, run.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run record insert: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	return nil
}

// LastRun returns the most recently finished run
func (w *Writer) LastRun(ctx context.Context) (*RunRecord, error) {
	query, args, err := w.psql.Select("run_id", "started_at", "finished_at", "status", "rows_loaded", "reports_written", "error").
		From(runsTable).
		OrderBy("finished_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}
	var run RunRecord
	if err := w.db.GetContext(ctx, &run, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}
	return &run, nil
}
