package fetcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marquee/internal/fetcher"
	"marquee/internal/ledger"
	"marquee/internal/services"
)

type memoryRecorder struct {
	mu    sync.Mutex
	usage map[string]ledger.Usage
	marks int
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{usage: make(map[string]ledger.Usage)}
}

func (r *memoryRecorder) RecordCall(_ context.Context, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.usage[day]
	u.Day = day
	u.Calls++
	r.usage[day] = u
	return nil
}

func (r *memoryRecorder) MarkExhausted(_ context.Context, day string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.usage[day]
	u.Day = day
	if u.ExhaustedAt.IsZero() {
		u.ExhaustedAt = at
	}
	r.usage[day] = u
	r.marks++
	return nil
}

func (r *memoryRecorder) Usage(_ context.Context, day string) (ledger.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.usage[day]
	u.Day = day
	return u, nil
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newFetcher(settings fetcher.Settings, sleeps *sleepLog, recorder fetcher.Recorder) *fetcher.Fetcher {
	opts := []fetcher.Option{
		fetcher.WithSleeper(sleeps.sleep),
		fetcher.WithClock(func() time.Time { return fixedNow }),
	}
	if recorder != nil {
		opts = append(opts, fetcher.WithRecorder(recorder))
	}
	return fetcher.New(settings, opts...)
}

func transientErr() error {
	return services.Wrap(services.ErrTransient, "kobis", "movie info", "server overloaded", nil)
}

func quotaErr() error {
	return services.Wrap(services.ErrQuotaExhausted, "kobis", "movie info", "fault 320011", nil)
}

func TestTransientFailuresRetryWithCappedBackoff(t *testing.T) {
	sleeps := &sleepLog{}
	f := newFetcher(fetcher.Settings{
		Budget:         5,
		MaxAttempts:    4,
		BackoffInitial: 100 * time.Millisecond,
		BackoffMax:     250 * time.Millisecond,
	}, sleeps, nil)

	calls := 0
	err := f.Do(context.Background(), "movie info", func(context.Context) error {
		calls++
		if calls < 4 {
			return transientErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}
	if len(sleeps.delays) != len(want) {
		t.Fatalf("unexpected delays %v", sleeps.delays)
	}
	for i := range want {
		if sleeps.delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, sleeps.delays[i], want[i])
		}
	}
	if f.Remaining() != 4 {
		t.Fatalf("retries must not spend budget; remaining=%d", f.Remaining())
	}
	stats := f.Stats()
	if stats.Calls != 1 || stats.Attempts != 4 || stats.Retries != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRetryCapSurfacesPermanentFailure(t *testing.T) {
	f := newFetcher(fetcher.Settings{MaxAttempts: 3, BackoffInitial: time.Millisecond}, &sleepLog{}, nil)

	calls := 0
	err := f.Do(context.Background(), "weekly report", func(context.Context) error {
		calls++
		return transientErr()
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if services.Classify(err) != services.KindPermanent {
		t.Fatalf("expected permanent classification, got %q (%v)", services.Classify(err), err)
	}
	var retryErr *fetcher.RetryError
	if !errors.As(err, &retryErr) || retryErr.Attempts != 3 {
		t.Fatalf("expected RetryError with 3 attempts, got %v", err)
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	sleeps := &sleepLog{}
	f := newFetcher(fetcher.Settings{MaxAttempts: 4}, sleeps, nil)

	calls := 0
	err := f.Do(context.Background(), "movie info", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrPermanent, "kobis", "movie info", "bad request", nil)
	})
	if err == nil || calls != 1 || len(sleeps.delays) != 0 {
		t.Fatalf("expected a single attempt, calls=%d err=%v delays=%v", calls, err, sleeps.delays)
	}
}

func TestQuotaLatchBlocksLaterCalls(t *testing.T) {
	recorder := newMemoryRecorder()
	f := newFetcher(fetcher.Settings{MaxAttempts: 4}, &sleepLog{}, recorder)

	calls := 0
	err := f.Do(context.Background(), "movie info", func(context.Context) error {
		calls++
		return quotaErr()
	})
	if !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("quota must not be retried, got %d attempts", calls)
	}

	err = f.Do(context.Background(), "movie info", func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected latched quota error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("no network attempt is allowed after quota exhaustion")
	}
	if !f.Exhausted() || !f.Stats().QuotaExhausted {
		t.Fatalf("expected latch to be visible")
	}
	usage, _ := recorder.Usage(context.Background(), "20240310")
	if !usage.Exhausted() || usage.Calls != 1 || recorder.marks != 1 {
		t.Fatalf("unexpected ledger state %+v marks=%d", usage, recorder.marks)
	}
}

func TestLedgerExhaustionPreLatchesWithoutSpendingBudget(t *testing.T) {
	recorder := newMemoryRecorder()
	_ = recorder.MarkExhausted(context.Background(), "20240310", fixedNow)
	f := newFetcher(fetcher.Settings{Budget: 3}, &sleepLog{}, recorder)

	called := false
	err := f.Do(context.Background(), "movie info", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, services.ErrQuotaExhausted) || called {
		t.Fatalf("expected immediate quota stop, called=%v err=%v", called, err)
	}
	if f.Remaining() != 3 {
		t.Fatalf("budget should be untouched, remaining=%d", f.Remaining())
	}
}

func TestDailyQuotaLimitLatches(t *testing.T) {
	recorder := newMemoryRecorder()
	f := newFetcher(fetcher.Settings{DailyQuota: 2}, &sleepLog{}, recorder)

	ok := func(context.Context) error { return nil }
	for i := 0; i < 2; i++ {
		if err := f.Do(context.Background(), "movie info", ok); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if err := f.Do(context.Background(), "movie info", ok); !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected daily quota stop, got %v", err)
	}
}

func TestBudgetExhaustion(t *testing.T) {
	f := newFetcher(fetcher.Settings{Budget: 2}, &sleepLog{}, nil)

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}
	for i := 0; i < 2; i++ {
		if err := f.Do(context.Background(), "movie info", fn); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	err := f.Do(context.Background(), "movie info", fn)
	if !errors.Is(err, services.ErrBudgetExhausted) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if calls != 2 || f.Remaining() != 0 {
		t.Fatalf("unexpected calls=%d remaining=%d", calls, f.Remaining())
	}
	if !services.IsStopSignal(err) {
		t.Fatalf("budget exhaustion must be a stop signal")
	}
}

func TestBreakerOpensAfterConsecutivePermanentFailures(t *testing.T) {
	f := newFetcher(fetcher.Settings{Budget: 10, BreakerFailures: 2}, &sleepLog{}, nil)

	calls := 0
	failing := func(context.Context) error {
		calls++
		return services.Wrap(services.ErrPermanent, "kobis", "movie info", "returned 400", nil)
	}
	for i := 0; i < 2; i++ {
		_ = f.Do(context.Background(), "movie info", failing)
	}
	remaining := f.Remaining()

	err := f.Do(context.Background(), "movie info", failing)
	if err == nil || calls != 2 {
		t.Fatalf("expected breaker rejection without a call, calls=%d err=%v", calls, err)
	}
	if services.Classify(err) != services.KindPermanent {
		t.Fatalf("breaker rejection should classify permanent, got %q", services.Classify(err))
	}
	if f.Remaining() != remaining {
		t.Fatalf("breaker rejection must not spend budget")
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	f := newFetcher(fetcher.Settings{BreakerFailures: 1}, &sleepLog{}, nil)

	missing := func(context.Context) error {
		return services.Wrap(services.ErrNotFound, "kobis", "movie info", "no result", nil)
	}
	for i := 0; i < 3; i++ {
		err := f.Do(context.Background(), "movie info", missing)
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("call %d: expected not found, got %v", i, err)
		}
	}
}

func TestAttemptTimeoutIsRetried(t *testing.T) {
	f := newFetcher(fetcher.Settings{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond}, &sleepLog{}, nil)

	calls := 0
	err := f.Do(context.Background(), "weekly report", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected timeout then success, calls=%d err=%v", calls, err)
	}
}

func TestCallReturnsValue(t *testing.T) {
	f := newFetcher(fetcher.Settings{}, &sleepLog{}, nil)

	got, err := fetcher.Call(context.Background(), f, "movie info", func(context.Context) (string, error) {
		return "20124079", nil
	})
	if err != nil || got != "20124079" {
		t.Fatalf("unexpected result %q err=%v", got, err)
	}
	if f.Remaining() != -1 {
		t.Fatalf("zero budget should be unlimited")
	}
}

func TestCanceledContextStopsBeforeDispatch(t *testing.T) {
	f := newFetcher(fetcher.Settings{Budget: 1}, &sleepLog{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Do(ctx, "movie info", func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) || f.Remaining() != 1 {
		t.Fatalf("unexpected err=%v remaining=%d", err, f.Remaining())
	}
}
