// Package audience estimates a title's cumulative audience from weekly
// box office reports.
package audience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"marquee/internal/fetcher"
	"marquee/internal/kobis"
	"marquee/internal/logging"
	"marquee/internal/movie"
	"marquee/internal/services"
)

const (
	// DefaultWeeks is the number of weekly windows probed per title.
	DefaultWeeks = 8
	// DefaultOffsetDays aligns the first window with the weekly aggregation boundary.
	DefaultOffsetDays = 3
	// windowsAfterHit bounds how many further windows are scanned once the title was seen.
	windowsAfterHit = 2
	maxMemoReports  = 512
)

// ReportSource fetches a weekly ranking. *kobis.Client satisfies it.
type ReportSource interface {
	WeeklyBoxOffice(ctx context.Context, targetDate time.Time) (*kobis.WeeklyReport, error)
}

// Estimate is the outcome of probing one title.
type Estimate struct {
	// Value is the highest cumulative figure seen, or nil when no window ranked the title.
	Value   *int64
	Windows int
	Hits    int
}

// Estimator probes weekly reports through a fetcher.
type Estimator struct {
	source     ReportSource
	fetcher    *fetcher.Fetcher
	weeks      int
	offsetDays int
	now        func() time.Time
	logger     *slog.Logger
	reports    map[string]*kobis.WeeklyReport
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock replaces the wall clock used to skip windows that have not closed yet.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		e.logger = logging.NewComponentLogger(logger, "audience")
	}
}

// New constructs an Estimator probing weeks windows starting offsetDays after release.
func New(source ReportSource, f *fetcher.Fetcher, weeks, offsetDays int, opts ...Option) *Estimator {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	if offsetDays < 0 {
		offsetDays = DefaultOffsetDays
	}
	e := &Estimator{
		source:     source,
		fetcher:    f,
		weeks:      weeks,
		offsetDays: offsetDays,
		now:        time.Now,
		logger:     logging.NewComponentLogger(nil, "audience"),
		reports:    make(map[string]*kobis.WeeklyReport),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetDate returns the report date probed for week (0-based).
func (e *Estimator) TargetDate(release time.Time, week int) time.Time {
	return release.AddDate(0, 0, e.offsetDays+7*week)
}

// Estimate returns the maximum cumulative audience reported for movieID.
// Windows that fail for ordinary reasons are skipped. A quota or budget stop
// ends the probe and returns what was accumulated so far with the stop error.
func (e *Estimator) Estimate(ctx context.Context, movieID string, release time.Time) (Estimate, error) {
	var est Estimate
	today := e.now().In(kobis.KST)
	afterHit := 0
	for week := 0; week < e.weeks; week++ {
		target := e.TargetDate(release, week)
		if target.After(today) {
			break
		}
		if est.Value != nil {
			if afterHit >= windowsAfterHit {
				break
			}
			afterHit++
		}

		report, err := e.report(ctx, target)
		est.Windows++
		if err != nil {
			if services.IsStopSignal(err) || errors.Is(err, context.Canceled) {
				return est, err
			}
			logging.WithContext(ctx, e.logger).Debug("weekly window skipped",
				logging.String(logging.FieldMovieID, movieID),
				logging.String("target_dt", target.Format(movie.DateLayout)),
				logging.ErrorKind(err),
				logging.Error(err),
			)
			continue
		}
		entry, ok := report.Find(movieID)
		if !ok || !entry.AudiAcc.Known {
			continue
		}
		est.Hits++
		est.Value = movie.MaxAudience(est.Value, movie.Int64Ptr(entry.AudiAcc.Value))
	}
	return est, nil
}

func (e *Estimator) report(ctx context.Context, target time.Time) (*kobis.WeeklyReport, error) {
	key := target.Format(movie.DateLayout)
	if report, ok := e.reports[key]; ok {
		return report, nil
	}
	report, err := fetcher.Call(ctx, e.fetcher, "weekly_box_office", func(ctx context.Context) (*kobis.WeeklyReport, error) {
		return e.source.WeeklyBoxOffice(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	if len(e.reports) >= maxMemoReports {
		clear(e.reports)
	}
	e.reports[key] = report
	return report, nil
}
