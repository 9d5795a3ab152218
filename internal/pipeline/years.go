package pipeline

import (
	"context"
	"fmt"

	"marquee/internal/candidates"
)

// Years fetches candidate lists for every year in [start, end] that has no
// stored file. The stage is bound by the daily quota only.
func (e *Env) Years(ctx context.Context, start, end int) (Summary, error) {
	return e.runStage(ctx, StageYears, func(ctx context.Context, sum *Summary) error {
		client, err := e.upstream()
		if err != nil {
			return err
		}
		f := e.newFetcher(0)
		defer func() { sum.absorb(f.Stats()) }()

		result, err := candidates.NewFetcher(e.years, client, f, e.logger).Run(ctx, start, end)
		sum.Processed = len(result.Fetched) + len(result.Failed)
		sum.Saved = len(result.Fetched)
		sum.Skipped = len(result.Skipped)
		sum.Failed = len(result.Failed)
		sum.Remaining = len(result.Pending)
		sum.Detail = fmt.Sprintf("years %d..%d, %d pages", start, end, result.Pages)
		return err
	})
}
