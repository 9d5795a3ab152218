package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marquee/internal/services"
)

// StatusRunning marks a run that has not finished (or crashed before finishing).
const StatusRunning services.RunStatus = "running"

// Run is one stage invocation.
type Run struct {
	ID         string
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     services.RunStatus
	Processed  int
	Saved      int
	Skipped    int
	Failed     int
	Calls      int
	Remaining  int
	Detail     string
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StartRun records a new running stage with a fresh identifier.
func (l *Ledger) StartRun(ctx context.Context, stage string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		StartedAt: l.now(),
		Status:    StatusRunning,
	}
	err := l.exec(ctx, "INSERT INTO runs (id, stage, started_at, status) VALUES (?, ?, ?, ?)",
		run.ID, run.Stage, formatTime(run.StartedAt), string(run.Status))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters and status of run.
func (l *Ledger) FinishRun(ctx context.Context, run *Run) error {
	if run == nil {
		return nil
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = l.now()
	}
	err := l.exec(ctx, `UPDATE runs SET finished_at = ?, status = ?, processed = ?, saved = ?, skipped = ?,
		failed = ?, calls = ?, remaining = ?, detail = ? WHERE id = ?`,
		formatTime(run.FinishedAt), string(run.Status), run.Processed, run.Saved, run.Skipped,
		run.Failed, run.Calls, run.Remaining, run.Detail, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, stage, started_at, finished_at, status, processed, saved,
		skipped, failed, calls, remaining, detail FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			started  sql.NullString
			finished sql.NullString
			status   string
		)
		if err := rows.Scan(&run.ID, &run.Stage, &started, &finished, &status, &run.Processed, &run.Saved,
			&run.Skipped, &run.Failed, &run.Calls, &run.Remaining, &run.Detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.Status = services.RunStatus(status)
		out = append(out, run)
	}
	return out, rows.Err()
}
