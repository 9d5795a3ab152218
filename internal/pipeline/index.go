package pipeline

import (
	"context"
	"fmt"

	"marquee/internal/index"
)

// Index rebuilds the movie and person indexes from the cache. It makes no
// upstream calls.
func (e *Env) Index(ctx context.Context) (Summary, error) {
	return e.runStage(ctx, StageIndex, func(ctx context.Context, sum *Summary) error {
		result, err := index.NewBuilder(e.cache, e.cfg.Paths.SearchDir, e.logger, index.WithClock(e.now)).Build(ctx)
		sum.Processed = result.Scanned
		sum.Skipped = result.Skipped
		if err != nil {
			return err
		}
		sum.Saved = result.Movies
		sum.Detail = fmt.Sprintf("%d movies, %d people, %d duplicates", result.Movies, result.People, result.Duplicates)
		return nil
	})
}
