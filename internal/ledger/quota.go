package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Usage is the recorded upstream consumption for one quota day.
type Usage struct {
	Day         string
	Calls       int
	ExhaustedAt time.Time
}

// Exhausted reports whether the upstream declared the quota spent on this day.
func (u Usage) Exhausted() bool {
	return !u.ExhaustedAt.IsZero()
}

// Remaining returns how many calls are left under limit. limit <= 0 means unlimited and yields -1.
func (u Usage) Remaining(limit int) int {
	if limit <= 0 {
		return -1
	}
	return max(limit-u.Calls, 0)
}

// RecordCall counts one dispatched upstream request against day.
func (l *Ledger) RecordCall(ctx context.Context, day string) error {
	err := l.exec(ctx, `INSERT INTO quota_usage (day, calls) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET calls = calls + 1`, day)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// MarkExhausted flags day as exhausted. The first timestamp is kept.
func (l *Ledger) MarkExhausted(ctx context.Context, day string, at time.Time) error {
	err := l.exec(ctx, `INSERT INTO quota_usage (day, calls, exhausted_at) VALUES (?, 0, ?)
		ON CONFLICT(day) DO UPDATE SET exhausted_at = COALESCE(exhausted_at, excluded.exhausted_at)`,
		day, formatTime(at))
	if err != nil {
		return fmt.Errorf("mark quota exhausted: %w", err)
	}
	return nil
}

// Usage returns the usage recorded for day. Unknown days report zero calls.
func (l *Ledger) Usage(ctx context.Context, day string) (Usage, error) {
	usage := Usage{Day: day}
	var exhausted sql.NullString
	err := l.db.QueryRowContext(ctx, "SELECT calls, exhausted_at FROM quota_usage WHERE day = ?", day).
		Scan(&usage.Calls, &exhausted)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return usage, fmt.Errorf("read quota usage: %w", err)
	}
	usage.ExhaustedAt = parseTime(exhausted)
	return usage, nil
}

// RecentUsage returns up to limit days, most recent first.
func (l *Ledger) RecentUsage(ctx context.Context, limit int) ([]Usage, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := l.db.QueryContext(ctx, "SELECT day, calls, exhausted_at FROM quota_usage ORDER BY day DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list quota usage: %w", err)
	}
	defer rows.Close()
	var out []Usage
	for rows.Next() {
		var u Usage
		var exhausted sql.NullString
		if err := rows.Scan(&u.Day, &u.Calls, &exhausted); err != nil {
			return nil, fmt.Errorf("scan quota usage: %w", err)
		}
		u.ExhaustedAt = parseTime(exhausted)
		out = append(out, u)
	}
	return out, rows.Err()
}
