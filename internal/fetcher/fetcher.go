package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"marquee/internal/config"
	"marquee/internal/kobis"
	"marquee/internal/ledger"
	"marquee/internal/logging"
	"marquee/internal/services"
)

const (
	defaultMaxAttempts    = 4
	defaultBackoffInitial = 1500 * time.Millisecond
	defaultBackoffMax     = 30 * time.Second
	breakerCooldown       = time.Minute
)

// Recorder persists per-day call usage. *ledger.Ledger satisfies it.
type Recorder interface {
	RecordCall(ctx context.Context, day string) error
	MarkExhausted(ctx context.Context, day string, at time.Time) error
	Usage(ctx context.Context, day string) (ledger.Usage, error)
}

// Settings tunes a Fetcher.
type Settings struct {
	// Budget is the number of call-sites allowed for this run. Zero or less is unlimited.
	Budget          int
	MaxAttempts     int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	RateInterval    time.Duration
	AttemptTimeout  time.Duration
	BreakerFailures int
	DailyQuota      int
}

// SettingsFromConfig derives fetcher settings from the kobis section.
func SettingsFromConfig(cfg *config.Config, budget int) Settings {
	if cfg == nil {
		return Settings{Budget: budget}
	}
	initial, maxDelay := cfg.Backoff()
	return Settings{
		Budget:          budget,
		MaxAttempts:     cfg.KOBIS.MaxAttempts,
		BackoffInitial:  initial,
		BackoffMax:      maxDelay,
		RateInterval:    cfg.RateInterval(),
		AttemptTimeout:  cfg.RequestTimeout(),
		BreakerFailures: cfg.KOBIS.BreakerFailures,
		DailyQuota:      cfg.KOBIS.DailyQuota,
	}
}

// Stats summarizes fetcher activity for a run.
type Stats struct {
	Calls           int
	Attempts        int
	Retries         int
	Failures        int
	BudgetRemaining int
	QuotaExhausted  bool
}

// RetryError reports that a transient failure persisted past the attempt cap.
// It classifies as permanent.
type RetryError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return services.ErrPermanent }

// Fetcher executes upstream calls under a budget.
type Fetcher struct {
	settings Settings
	logger   *slog.Logger
	recorder Recorder
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[any]
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time

	mu        sync.Mutex
	remaining int
	latched   bool
	stats     Stats
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "fetcher")
	}
}

// WithRecorder persists usage so later runs on the same quota day can stop early.
func WithRecorder(recorder Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = recorder
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithClock replaces the wall clock used for quota day accounting.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// New constructs a Fetcher.
func New(settings Settings, opts ...Option) *Fetcher {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = defaultMaxAttempts
	}
	if settings.BackoffInitial <= 0 {
		settings.BackoffInitial = defaultBackoffInitial
	}
	if settings.BackoffMax < settings.BackoffInitial {
		settings.BackoffMax = max(defaultBackoffMax, settings.BackoffInitial)
	}
	limit := rate.Inf
	if settings.RateInterval > 0 {
		limit = rate.Every(settings.RateInterval)
	}
	f := &Fetcher{
		settings:  settings,
		logger:    logging.NewComponentLogger(nil, "fetcher"),
		limiter:   rate.NewLimiter(limit, 1),
		sleep:     SleepWithContext,
		now:       time.Now,
		remaining: settings.Budget,
	}
	for _, opt := range opts {
		opt(f)
	}
	if settings.BreakerFailures > 0 {
		f.breaker = f.newBreaker(uint32(settings.BreakerFailures))
	}
	return f
}

func (f *Fetcher) newBreaker(threshold uint32) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "kobis",
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return services.Classify(err) != services.KindPermanent || errors.Is(err, services.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Info("upstream breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
}

// Do runs fn as one budgeted call-site. Transient failures are retried with
// capped exponential backoff; quota faults latch the fetcher.
func (f *Fetcher) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.checkQuota(ctx, operation); err != nil {
		return err
	}
	if f.breaker != nil && f.breaker.State() == gobreaker.StateOpen {
		return services.Wrap(services.ErrPermanent, "fetcher", operation, "upstream breaker open", gobreaker.ErrOpenState)
	}
	if err := f.spend(operation); err != nil {
		return err
	}

	if f.breaker == nil {
		return f.attempts(ctx, operation, fn)
	}
	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.attempts(ctx, operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return services.Wrap(services.ErrPermanent, "fetcher", operation, "upstream breaker open", err)
	}
	return err
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, f *Fetcher, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := f.Do(ctx, operation, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

func (f *Fetcher) attempts(ctx context.Context, operation string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		f.recordAttempt(ctx, attempt)

		attemptCtx, cancel := f.attemptContext(ctx)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch classify(err) {
		case services.KindQuota:
			f.latch(ctx, operation, err)
			return err
		case services.KindTransient:
			if attempt >= f.settings.MaxAttempts {
				f.countFailure()
				return &RetryError{Operation: operation, Attempts: attempt, Last: err}
			}
			delay := f.backoff(attempt)
			f.countRetry()
			logging.WithContext(ctx, f.logger).Info("transient upstream failure; retrying",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return err
			}
		default:
			f.countFailure()
			return err
		}
	}
}

func classify(err error) services.FailureKind {
	kind := services.Classify(err)
	if kind == services.KindPermanent && errors.Is(err, context.DeadlineExceeded) {
		return services.KindTransient
	}
	return kind
}

func (f *Fetcher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.settings.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.settings.AttemptTimeout)
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.settings.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= f.settings.BackoffMax {
			return f.settings.BackoffMax
		}
	}
	return min(delay, f.settings.BackoffMax)
}

func (f *Fetcher) spend(operation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings.Budget > 0 {
		if f.remaining <= 0 {
			return services.Wrap(services.ErrBudgetExhausted, "fetcher", operation,
				fmt.Sprintf("budget of %d calls spent", f.settings.Budget), nil)
		}
		f.remaining--
	}
	f.stats.Calls++
	return nil
}

func (f *Fetcher) checkQuota(ctx context.Context, operation string) error {
	f.mu.Lock()
	latched := f.latched
	f.mu.Unlock()
	if latched {
		return quotaError(operation, "quota latched for today")
	}
	if f.recorder == nil {
		return nil
	}
	usage, err := f.recorder.Usage(ctx, kobis.QuotaDay(f.now()))
	if err != nil {
		logging.WarnWithContext(f.logger, "quota ledger read failed", "ledger_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "daily quota is not enforced locally for this call"),
		)
		return nil
	}
	switch {
	case usage.Exhausted():
		f.setLatched()
		return quotaError(operation, "upstream reported quota exhaustion earlier today")
	case f.settings.DailyQuota > 0 && usage.Calls >= f.settings.DailyQuota:
		f.setLatched()
		return quotaError(operation, fmt.Sprintf("daily quota of %d calls reached", f.settings.DailyQuota))
	}
	return nil
}

func quotaError(operation, message string) error {
	return services.Wrap(services.ErrQuotaExhausted, "fetcher", operation, message, nil)
}

func (f *Fetcher) setLatched() {
	f.mu.Lock()
	f.latched = true
	f.stats.QuotaExhausted = true
	f.mu.Unlock()
}

func (f *Fetcher) latch(ctx context.Context, operation string, cause error) {
	f.setLatched()
	logging.WarnWithContext(logging.WithContext(ctx, f.logger), "upstream quota exhausted", "quota_exhausted",
		logging.String("operation", operation),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "rerun after the quota resets at midnight KST"),
		logging.String(logging.FieldImpact, "remaining calls this run are skipped"),
	)
	if f.recorder == nil {
		return
	}
	now := f.now()
	if err := f.recorder.MarkExhausted(ctx, kobis.QuotaDay(now), now); err != nil {
		f.logger.Debug("mark quota exhausted failed", logging.Error(err))
	}
}

func (f *Fetcher) recordAttempt(ctx context.Context, attempt int) {
	f.mu.Lock()
	f.stats.Attempts++
	f.mu.Unlock()
	if f.recorder == nil {
		return
	}
	if err := f.recorder.RecordCall(ctx, kobis.QuotaDay(f.now())); err != nil {
		f.logger.Debug("record call failed", logging.Int("attempt", attempt), logging.Error(err))
	}
}

func (f *Fetcher) countRetry() {
	f.mu.Lock()
	f.stats.Retries++
	f.mu.Unlock()
}

func (f *Fetcher) countFailure() {
	f.mu.Lock()
	f.stats.Failures++
	f.mu.Unlock()
}

// Exhausted reports whether the quota latch is set.
func (f *Fetcher) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latched
}

// Remaining returns the unspent budget, or -1 when unlimited.
func (f *Fetcher) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings.Budget <= 0 {
		return -1
	}
	return f.remaining
}

// Stats returns a snapshot of activity counters.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats
	stats.BudgetRemaining = -1
	if f.settings.Budget > 0 {
		stats.BudgetRemaining = f.remaining
	}
	return stats
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
