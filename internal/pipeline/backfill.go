package pipeline

import (
	"context"
	"fmt"

	"marquee/internal/fetcher"
	"marquee/internal/logging"
	"marquee/internal/movie"
	"marquee/internal/normalize"
	"marquee/internal/services"
)

// BackfillOptions tunes a backfill run.
type BackfillOptions struct {
	// Budget overrides backfill.budget when positive.
	Budget int
}

// Backfill refetches cached records that carry no contributors and merges the
// recovered directors and actors into them.
func (e *Env) Backfill(ctx context.Context, opts BackfillOptions) (Summary, error) {
	return e.runStage(ctx, StageBackfill, func(ctx context.Context, sum *Summary) error {
		logger := logging.WithContext(ctx, e.logger)
		var targets []movie.Detail
		scanErrors := 0
		for entry, err := range e.cache.ScanAll() {
			if err != nil {
				scanErrors++
				continue
			}
			if !entry.Detail.HasContributors() {
				targets = append(targets, entry.Detail)
			}
		}
		sum.Detail = fmt.Sprintf("%d records without contributors", len(targets))
		if scanErrors > 0 {
			logging.WarnWithContext(logger, "unreadable cache records skipped", "cache_scan_errors",
				logging.Int("count", scanErrors),
				logging.String(logging.FieldErrorHint, "inspect the movies directory for damaged files"),
				logging.String(logging.FieldImpact, "damaged records are not backfilled"),
			)
		}
		if len(targets) == 0 {
			return nil
		}

		client, err := e.upstream()
		if err != nil {
			return err
		}
		budget := e.cfg.Backfill.Budget
		if opts.Budget > 0 {
			budget = opts.Budget
		}
		f := e.newFetcher(budget)
		defer func() { sum.absorb(f.Stats()) }()

		sampler := logging.NewProgressSampler(10)
		for i, current := range targets {
			itemCtx := services.WithMovieID(ctx, current.ID)
			itemLogger := logging.WithContext(itemCtx, e.logger)
			sum.Processed++

			raw, err := fetcher.Call(itemCtx, f, "movie_info", func(ctx context.Context) (map[string]any, error) {
				return client.MovieInfo(ctx, current.ID)
			})
			if err != nil {
				if services.IsStopSignal(err) || ctx.Err() != nil {
					sum.Remaining = len(targets) - i
					return err
				}
				sum.Failed++
				logging.WarnWithContext(itemLogger, "backfill fetch failed", "backfill_fetch_failed",
					logging.ErrorKind(err),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the record stays without contributors until the next backfill"),
					logging.String(logging.FieldImpact, "people from this title are missing from the person index"),
				)
				continue
			}

			updated, ok := mergeContributors(current, raw)
			if !ok {
				sum.Skipped++
				itemLogger.Debug("refetched record has no contributors")
				continue
			}
			if _, err := e.cache.Upsert(updated); err != nil {
				return services.Wrap(services.ErrPermanent, "pipeline", "backfill", "cache write failed", err)
			}
			sum.Saved++
			if sampler.ShouldLog(i+1, len(targets)) {
				logger.Info("backfill progress",
					logging.Int("done", i+1),
					logging.Int("total", len(targets)),
					logging.Int("saved", sum.Saved),
				)
			}
		}
		return nil
	})
}

// mergeContributors copies contributors (and companies when absent) from a
// refetched record into current. ok is false when nothing was recovered.
func mergeContributors(current movie.Detail, raw map[string]any) (movie.Detail, bool) {
	canonical, ok := normalize.Normalize(raw, normalize.Hints{ID: current.ID, Year: current.Year()}).(normalize.Canonical)
	if !ok || !canonical.Detail.HasContributors() {
		return current, false
	}
	out := current.Clone()
	out.Contributors = canonical.Detail.Contributors
	if len(out.Companies) == 0 {
		out.Companies = canonical.Detail.Companies
	}
	return out, true
}
