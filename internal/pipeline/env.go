package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"marquee/internal/audience"
	"marquee/internal/candidates"
	"marquee/internal/config"
	"marquee/internal/detailcache"
	"marquee/internal/fetcher"
	"marquee/internal/kobis"
	"marquee/internal/ledger"
	"marquee/internal/logging"
	"marquee/internal/preflight"
	"marquee/internal/services"
)

// Client is the upstream surface the stages use. *kobis.Client satisfies it.
type Client interface {
	MovieInfo(ctx context.Context, movieCd string) (map[string]any, error)
	WeeklyBoxOffice(ctx context.Context, targetDate time.Time) (*kobis.WeeklyReport, error)
	MovieList(ctx context.Context, year, page, perPage int) (*kobis.MovieListPage, error)
}

// Env holds the stores and clients shared by the stages of one invocation.
type Env struct {
	cfg    *config.Config
	logger *slog.Logger
	ledger *ledger.Ledger
	cache  *detailcache.Cache
	years  *candidates.Store
	client Client
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// Option configures an Env.
type Option func(*Env)

// WithClient injects the upstream client instead of building one from config.
func WithClient(client Client) Option {
	return func(e *Env) {
		e.client = client
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Env) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSleeper replaces the fetcher backoff sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Env) {
		e.sleep = sleep
	}
}

// Open prepares the directories, ledger and stores described by cfg.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Env, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	e := &Env{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		ledger: led,
		cache:  detailcache.New(cfg.Paths.MoviesDir, logger),
		years:  candidates.NewStore(cfg.Paths.YearsDir),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the ledger.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	return e.ledger.Close()
}

// Ledger returns the usage and run ledger.
func (e *Env) Ledger() *ledger.Ledger { return e.ledger }

// Cache returns the detail cache.
func (e *Env) Cache() *detailcache.Cache { return e.cache }

// YearStore returns the candidate store.
func (e *Env) YearStore() *candidates.Store { return e.years }

func (e *Env) upstream() (Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	if err := preflight.Err(preflight.RunAll(e.cfg, true)); err != nil {
		return nil, err
	}
	client, err := kobis.New(e.cfg.KOBIS.APIKey, e.cfg.KOBIS.BaseURL,
		kobis.WithUserAgent(e.cfg.KOBIS.UserAgent),
		kobis.WithHTTPClient(&http.Client{Timeout: e.cfg.RequestTimeout() + 5*time.Second}),
	)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

func (e *Env) newFetcher(budget int) *fetcher.Fetcher {
	opts := []fetcher.Option{
		fetcher.WithLogger(e.logger),
		fetcher.WithRecorder(e.ledger),
		fetcher.WithClock(e.now),
	}
	if e.sleep != nil {
		opts = append(opts, fetcher.WithSleeper(e.sleep))
	}
	return fetcher.New(fetcher.SettingsFromConfig(e.cfg, budget), opts...)
}

func (e *Env) newEstimator(client Client, f *fetcher.Fetcher) *audience.Estimator {
	return audience.New(client, f, e.cfg.Audience.Weeks, e.cfg.Audience.OffsetDays,
		audience.WithClock(e.now),
		audience.WithLogger(e.logger),
	)
}

// runStage records the stage in the ledger, stamps context fields, and turns
// the stage error into a status. Only failures are returned as errors.
func (e *Env) runStage(ctx context.Context, stage string, fn func(context.Context, *Summary) error) (Summary, error) {
	sum := Summary{Stage: stage, BudgetRemaining: -1}
	started := e.now()

	run, err := e.ledger.StartRun(ctx, stage)
	if err != nil {
		logging.WarnWithContext(e.logger, "run history unavailable", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "this run will not appear in marquee status"),
		)
	} else {
		sum.RunID = run.ID
		ctx = services.WithRunID(ctx, run.ID)
	}
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	stageErr := fn(ctx, &sum)
	sum.Status = services.StatusFor(stageErr)
	sum.Err = stageErr
	sum.Duration = e.now().Sub(started)

	switch {
	case sum.Status.Failed():
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.ErrorKind(stageErr),
			logging.Error(stageErr),
			logging.Int("processed", sum.Processed),
			logging.Int("saved", sum.Saved),
		)
	case sum.Status.Stopped():
		logging.WarnWithContext(logger, "stage stopped early", "stage_stopped",
			logging.String("status", string(sum.Status)),
			logging.Int("saved", sum.Saved),
			logging.Int("remaining", sum.Remaining),
			logging.Error(stageErr),
			logging.String(logging.FieldErrorHint, "rerun after the quota resets; finished work is kept"),
			logging.String(logging.FieldImpact, fmt.Sprintf("%d items left for a later run", sum.Remaining)),
		)
	default:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int("processed", sum.Processed),
			logging.Int("saved", sum.Saved),
			logging.Int("skipped", sum.Skipped),
			logging.Int("failed", sum.Failed),
			logging.Int("calls", sum.Calls),
			logging.Duration("duration", sum.Duration),
		)
	}

	if run != nil {
		run.Status = sum.Status
		run.Processed, run.Saved, run.Skipped, run.Failed = sum.Processed, sum.Saved, sum.Skipped, sum.Failed
		run.Calls, run.Remaining, run.Detail = sum.Calls, sum.Remaining, sum.Detail
		if stageErr != nil && sum.Status.Failed() {
			run.Detail = stageErr.Error()
		}
		if err := e.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			e.logger.Debug("finish run failed", logging.Error(err))
		}
	}

	if sum.Status.Failed() {
		return sum, stageErr
	}
	return sum, nil
}
