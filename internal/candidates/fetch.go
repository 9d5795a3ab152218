package candidates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"marquee/internal/fetcher"
	"marquee/internal/kobis"
	"marquee/internal/logging"
	"marquee/internal/services"
)

// PageSize is the number of titles requested per list page.
const PageSize = 100

// Lister pages through the catalog's title list. *kobis.Client satisfies it.
type Lister interface {
	MovieList(ctx context.Context, year, page, perPage int) (*kobis.MovieListPage, error)
}

// Result summarizes a years stage run.
type Result struct {
	Fetched []int
	Skipped []int
	Failed  []int
	Pages   int
	// Pending lists years in range that still lack a file when the run stopped early.
	Pending []int
}

// Fetcher builds missing year files.
type Fetcher struct {
	store   *Store
	lister  Lister
	fetcher *fetcher.Fetcher
	logger  *slog.Logger
}

// NewFetcher returns a years stage worker.
func NewFetcher(store *Store, lister Lister, f *fetcher.Fetcher, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		store:   store,
		lister:  lister,
		fetcher: f,
		logger:  logging.NewComponentLogger(logger, "candidates"),
	}
}

// Run fetches every year in [start, end] without a stored file. A year is
// written only after all its pages were fetched. Quota and budget stops end
// the run and are returned to the caller.
func (f *Fetcher) Run(ctx context.Context, start, end int) (Result, error) {
	var result Result
	if end < start {
		return result, services.Wrap(services.ErrConfiguration, "candidates", "run",
			fmt.Sprintf("year range %d..%d is empty", start, end), nil)
	}
	logger := logging.WithContext(ctx, f.logger)
	for year := start; year <= end; year++ {
		exists, err := f.store.Exists(year)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped = append(result.Skipped, year)
			logger.Debug("year file present; skipping", logging.Year(year))
			continue
		}

		yf, pages, err := f.fetchYear(ctx, year)
		result.Pages += pages
		if err != nil {
			if services.IsStopSignal(err) || ctx.Err() != nil {
				for y := year; y <= end; y++ {
					if ok, _ := f.store.Exists(y); !ok {
						result.Pending = append(result.Pending, y)
					}
				}
				return result, err
			}
			result.Failed = append(result.Failed, year)
			logging.WarnWithContext(logger, "year list fetch failed", "year_fetch_failed",
				logging.Year(year),
				logging.ErrorKind(err),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun the years stage; existing years are skipped"),
				logging.String(logging.FieldImpact, "titles from this year are not fetched until the list exists"),
			)
			continue
		}
		if err := f.store.Save(yf); err != nil {
			return result, err
		}
		result.Fetched = append(result.Fetched, year)
		logger.Info("year list saved",
			logging.Year(year),
			logging.Int("total", yf.TotalCount),
			logging.Int("candidates", len(yf.MovieCds)),
			logging.Int("pages", pages),
		)
	}
	return result, nil
}

func (f *Fetcher) fetchYear(ctx context.Context, year int) (YearFile, int, error) {
	yf := YearFile{Year: year, MovieList: []map[string]any{}}
	pages := 0
	for page := 1; ; page++ {
		resp, err := fetcher.Call(ctx, f.fetcher, "movie_list", func(ctx context.Context) (*kobis.MovieListPage, error) {
			return f.lister.MovieList(ctx, year, page, PageSize)
		})
		if err != nil {
			return YearFile{}, pages, err
		}
		pages++
		if page == 1 {
			yf.TotalCount = resp.TotalCount.Int()
		}
		yf.MovieList = append(yf.MovieList, resp.Movies...)
		if len(resp.Movies) == 0 || page*PageSize >= yf.TotalCount {
			break
		}
	}
	seen := make(map[string]struct{}, len(yf.MovieList))
	for _, row := range yf.MovieList {
		id := listedID(row)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		yf.MovieCds = append(yf.MovieCds, strings.TrimSpace(id))
	}
	return yf, pages, nil
}
