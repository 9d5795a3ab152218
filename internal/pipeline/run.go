package pipeline

import (
	"context"
)

// RunOptions selects the year range of a full run.
type RunOptions struct {
	YearStart       int
	YearEnd         int
	RefreshAudience bool
}

// Run sequences years, details and index. A quota or budget stop in a fetch
// stage skips the remaining fetch stages but the index is still rebuilt from
// what is cached. The first failed stage ends the run.
func (e *Env) Run(ctx context.Context, opts RunOptions) ([]Summary, error) {
	var summaries []Summary

	years, err := e.Years(ctx, opts.YearStart, opts.YearEnd)
	summaries = append(summaries, years)
	if err != nil {
		return summaries, err
	}

	if !years.Status.Stopped() {
		details, err := e.Details(ctx, DetailsOptions{
			YearStart:       opts.YearStart,
			YearEnd:         opts.YearEnd,
			RefreshAudience: opts.RefreshAudience,
		})
		summaries = append(summaries, details)
		if err != nil {
			return summaries, err
		}
	}

	idx, err := e.Index(ctx)
	summaries = append(summaries, idx)
	return summaries, err
}
