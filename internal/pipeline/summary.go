package pipeline

import (
	"fmt"
	"strings"
	"time"

	"marquee/internal/fetcher"
	"marquee/internal/services"
)

// Stage names.
const (
	StageYears    = "years"
	StageDetails  = "details"
	StageBackfill = "backfill"
	StageIndex    = "index"
)

// Summary reports one stage invocation.
type Summary struct {
	Stage     string
	RunID     string
	Status    services.RunStatus
	Processed int
	Saved     int
	Skipped   int
	Failed    int
	// Calls counts upstream attempts, retries included.
	Calls int
	// BudgetRemaining is the unspent call budget, or -1 when unlimited.
	BudgetRemaining int
	// Remaining counts work items left undone when the stage stopped early.
	Remaining int
	Duration  time.Duration
	Detail    string
	Err       error
}

func (s *Summary) absorb(stats fetcher.Stats) {
	s.Calls = stats.Attempts
	s.BudgetRemaining = stats.BudgetRemaining
}

// Line renders a one-line human summary.
func (s Summary) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: processed=%d saved=%d skipped=%d failed=%d calls=%d",
		s.Stage, s.Status.Label(), s.Processed, s.Saved, s.Skipped, s.Failed, s.Calls)
	if s.Status.Stopped() || s.Remaining > 0 {
		fmt.Fprintf(&b, " remaining=%d", s.Remaining)
	}
	if s.Detail != "" {
		b.WriteString(" (" + s.Detail + ")")
	}
	return b.String()
}
