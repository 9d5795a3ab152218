package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marquee/internal/audience"
	"marquee/internal/config"
	"marquee/internal/detailcache"
	"marquee/internal/fetcher"
	"marquee/internal/logging"
	"marquee/internal/movie"
	"marquee/internal/normalize"
	"marquee/internal/services"
)

// DetailsOptions selects the years and passes of a details run.
type DetailsOptions struct {
	YearStart int
	YearEnd   int
	// RefreshAudience re-estimates cached records in range whose figure is unknown.
	RefreshAudience bool
	// MaxSaves overrides details.max_saves when positive.
	MaxSaves int
	// Budget overrides details.budget when positive.
	Budget int
}

// errSaveCap ends the fetch loop once the save cap is reached.
var errSaveCap = errors.New("save cap reached")

type detailsRun struct {
	env       *Env
	client    Client
	fetcher   *fetcher.Fetcher
	estimator *audience.Estimator
	mode      string
	maxSaves  int
	sum       *Summary
}

// Details fetches, normalizes and caches every candidate in range that is not
// cached yet, optionally estimating cumulative audience on the way.
func (e *Env) Details(ctx context.Context, opts DetailsOptions) (Summary, error) {
	return e.runStage(ctx, StageDetails, func(ctx context.Context, sum *Summary) error {
		if opts.YearEnd < opts.YearStart {
			return services.Wrap(services.ErrConfiguration, "pipeline", "details",
				fmt.Sprintf("year range %d..%d is empty", opts.YearStart, opts.YearEnd), nil)
		}
		client, err := e.upstream()
		if err != nil {
			return err
		}
		budget := e.cfg.Details.Budget
		if opts.Budget > 0 {
			budget = opts.Budget
		}
		maxSaves := e.cfg.Details.MaxSaves
		if opts.MaxSaves > 0 {
			maxSaves = opts.MaxSaves
		}
		f := e.newFetcher(budget)
		defer func() { sum.absorb(f.Stats()) }()

		run := &detailsRun{
			env:       e,
			client:    client,
			fetcher:   f,
			estimator: e.newEstimator(client, f),
			mode:      e.cfg.Audience.Mode,
			maxSaves:  maxSaves,
			sum:       sum,
		}
		sum.Detail = fmt.Sprintf("years %d..%d, audience %s", opts.YearStart, opts.YearEnd, run.mode)

		err = run.fetchYears(ctx, opts.YearStart, opts.YearEnd)
		if errors.Is(err, errSaveCap) {
			sum.Detail += fmt.Sprintf(", stopped at max_saves=%d", maxSaves)
			return nil
		}
		if err != nil || !opts.RefreshAudience {
			return err
		}
		return run.refreshAudience(ctx, opts.YearStart, opts.YearEnd)
	})
}

func (r *detailsRun) fetchYears(ctx context.Context, start, end int) error {
	logger := logging.WithContext(ctx, r.env.logger)
	for year := start; year <= end; year++ {
		pending, ok, err := r.pending(year)
		if err != nil {
			return err
		}
		if !ok {
			logging.WarnWithContext(logger, "year list missing; skipping year", "year_list_missing",
				logging.Year(year),
				logging.String(logging.FieldErrorHint, "run marquee years for this range first"),
				logging.String(logging.FieldImpact, "no titles from this year are fetched"),
			)
			continue
		}
		logger.Info("year details started",
			logging.Year(year),
			logging.Int("pending", len(pending)),
		)

		sampler := logging.NewProgressSampler(10)
		for i, id := range pending {
			if r.sum.Saved >= r.maxSaves {
				r.sum.Remaining = r.pendingFrom(year, end)
				return errSaveCap
			}
			if err := r.fetchOne(ctx, id, year); err != nil {
				r.sum.Remaining = r.pendingFrom(year, end)
				return err
			}
			if sampler.ShouldLog(i+1, len(pending)) {
				logger.Info("year details progress",
					logging.Year(year),
					logging.Int("done", i+1),
					logging.Int("total", len(pending)),
					logging.Int("percent", int(logging.Percent(i+1, len(pending)))),
					logging.Int("calls_remaining", r.fetcher.Remaining()),
				)
			}
		}
	}
	return nil
}

// pending returns the candidates of year that are not cached. ok is false when
// the year has no candidate list.
func (r *detailsRun) pending(year int) ([]string, bool, error) {
	yf, ok, err := r.env.years.Load(year)
	if err != nil || !ok {
		return nil, ok, err
	}
	var out []string
	for _, id := range yf.Candidates() {
		cached, err := r.env.cache.Exists(id)
		if err != nil {
			return nil, true, err
		}
		if !cached {
			out = append(out, id)
		}
	}
	return out, true, nil
}

// pendingFrom counts uncached candidates in [year, end].
func (r *detailsRun) pendingFrom(year, end int) int {
	total := 0
	for y := year; y <= end; y++ {
		ids, _, err := r.pending(y)
		if err != nil {
			continue
		}
		total += len(ids)
	}
	return total
}

// fetchOne returns nil for per-item failures; only stop signals, cancellation
// and cache write failures end the loop.
func (r *detailsRun) fetchOne(ctx context.Context, id string, year int) error {
	ctx = services.WithMovieID(ctx, id)
	logger := logging.WithContext(ctx, r.env.logger)
	r.sum.Processed++

	raw, err := fetcher.Call(ctx, r.fetcher, "movie_info", func(ctx context.Context) (map[string]any, error) {
		return r.client.MovieInfo(ctx, id)
	})
	if err != nil {
		if services.IsStopSignal(err) || ctx.Err() != nil {
			return err
		}
		r.sum.Failed++
		logging.WarnWithContext(logger, "detail fetch failed", "detail_fetch_failed",
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the title stays pending and is retried on the next run"),
			logging.String(logging.FieldImpact, "title missing from the cache"),
		)
		return nil
	}

	canonical, ok := normalize.Normalize(raw, normalize.Hints{ID: id, Year: strconv.Itoa(year)}).(normalize.Canonical)
	if !ok {
		r.sum.Skipped++
		logger.Debug("detail record insufficient; skipping")
		return nil
	}
	detail := canonical.Detail
	if detail.ID == "" {
		detail.ID = id
	}

	stopErr := r.estimate(ctx, &detail)
	if stopErr != nil && !services.IsStopSignal(stopErr) {
		return stopErr
	}
	if err := r.save(ctx, detail); err != nil {
		return err
	}
	return stopErr
}

// estimate fills detail.Audience when the audience mode selects the title. A
// stop signal is returned after the partial figure was merged.
func (r *detailsRun) estimate(ctx context.Context, detail *movie.Detail) error {
	release, ok := detail.Released()
	if !ok || !r.selects(release) {
		return nil
	}
	est, err := r.estimator.Estimate(ctx, detail.ID, release)
	detail.Audience = movie.MaxAudience(detail.Audience, est.Value)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, r.env.logger).Debug("audience estimated",
		logging.Int("windows", est.Windows),
		logging.Int("hits", est.Hits),
		logging.Bool("known", est.Value != nil),
	)
	return nil
}

func (r *detailsRun) selects(release time.Time) bool {
	switch r.mode {
	case config.AudienceAll:
		return true
	case config.AudienceRecent:
		cutoff := r.env.now().AddDate(0, 0, -r.env.cfg.Audience.RecentDays)
		return !release.Before(cutoff)
	default:
		return false
	}
}

func (r *detailsRun) save(ctx context.Context, detail movie.Detail) error {
	outcome, err := r.env.cache.Upsert(detail)
	if err != nil {
		if errors.Is(err, services.ErrMalformedInput) {
			r.sum.Skipped++
			logging.WithContext(ctx, r.env.logger).Debug("detail record rejected by cache", logging.Error(err))
			return nil
		}
		return services.Wrap(services.ErrPermanent, "pipeline", "save detail", "cache write failed", err)
	}
	if outcome == detailcache.OutcomeUnchanged {
		r.sum.Skipped++
		return nil
	}
	r.sum.Saved++
	return nil
}

// refreshAudience re-estimates cached records in range whose figure is unknown.
// The off mode is treated as all here since the pass was requested explicitly.
func (r *detailsRun) refreshAudience(ctx context.Context, start, end int) error {
	if r.mode == config.AudienceOff {
		r.mode = config.AudienceAll
	}
	var targets []movie.Detail
	for entry, err := range r.env.cache.ScanAll() {
		if err != nil {
			continue
		}
		year, convErr := strconv.Atoi(entry.Year)
		if convErr != nil || year < start || year > end || entry.Detail.Audience != nil {
			continue
		}
		if release, ok := entry.Detail.Released(); ok && r.selects(release) {
			targets = append(targets, entry.Detail)
		}
	}
	logger := logging.WithContext(ctx, r.env.logger)
	logger.Info("audience refresh started", logging.Int("targets", len(targets)))

	for i, detail := range targets {
		itemCtx := services.WithMovieID(ctx, detail.ID)
		r.sum.Processed++
		stopErr := r.estimate(itemCtx, &detail)
		if stopErr != nil && !services.IsStopSignal(stopErr) {
			r.sum.Remaining = len(targets) - i
			return stopErr
		}
		if detail.Audience != nil {
			if err := r.save(itemCtx, detail); err != nil {
				return err
			}
		} else {
			r.sum.Skipped++
		}
		if stopErr != nil {
			r.sum.Remaining = len(targets) - i - 1
			return stopErr
		}
	}
	return nil
}
