package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"marquee/internal/config"
	"marquee/internal/detailcache"
	"marquee/internal/kobis"
	"marquee/internal/ledger"
	"marquee/internal/pipeline"
	"marquee/internal/preflight"
	"marquee/internal/services"
)

type statusReport struct {
	today      ledger.Usage
	dailyQuota int
	history    []ledger.Usage
	runs       []ledger.Run
	cache      []detailcache.YearCount
	checks     []preflight.Result
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runLimit int
	var dayLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show quota usage, recent runs and cache counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withEnv(false, func(env *pipeline.Env) error {
				report, err := collectStatus(cmd.Context(), cfg, env, time.Now(), runLimit, dayLimit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeStatus(out, report, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&runLimit, "runs", 10, "Number of recent runs to show")
	cmd.Flags().IntVar(&dayLimit, "days", 7, "Number of quota days to show")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, env *pipeline.Env, now time.Time, runLimit, dayLimit int) (statusReport, error) {
	report := statusReport{dailyQuota: cfg.KOBIS.DailyQuota}
	var err error
	if report.today, err = env.Ledger().Usage(ctx, kobis.QuotaDay(now)); err != nil {
		return report, fmt.Errorf("read quota usage: %w", err)
	}
	if report.history, err = env.Ledger().RecentUsage(ctx, dayLimit); err != nil {
		return report, fmt.Errorf("read quota history: %w", err)
	}
	if report.runs, err = env.Ledger().RecentRuns(ctx, runLimit); err != nil {
		return report, fmt.Errorf("read run history: %w", err)
	}
	if report.cache, err = env.Cache().Counts(); err != nil {
		return report, fmt.Errorf("count cache: %w", err)
	}
	report.checks = preflight.RunAll(cfg, true)
	return report, nil
}

func writeStatus(out io.Writer, report statusReport, colorize bool) {
	w := newStatusWriter(out, colorize)

	w.section("Quota")
	kind, message := quotaSummary(report)
	w.line("Today", kind, message)
	if len(report.runs) > 0 {
		last := report.runs[0]
		message := fmt.Sprintf("%s, %d saved", last.Status.Label(), last.Saved)
		if last.Remaining > 0 {
			message += fmt.Sprintf(", %d remaining", last.Remaining)
		}
		w.line("Last "+last.Stage, runStatusKind(last.Status), message)
	}
	for _, check := range report.checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		w.line(check.Name, kind, check.Detail)
	}
	if len(report.history) > 0 {
		w.text(renderTable(
			[]string{"Day (KST)", "Calls", "Remaining", "Exhausted"},
			usageRows(report.history, report.dailyQuota),
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	w.text("")
	w.section("Recent runs")
	if len(report.runs) == 0 {
		w.text(statusIndent + "No runs recorded")
	} else {
		w.text(renderTable(
			[]string{"Started", "Stage", "Status", "Processed", "Saved", "Failed", "Calls", "Remaining", "Duration"},
			runRows(report.runs),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}

	w.text("")
	w.section("Cache")
	w.text(renderTable([]string{"Year", "Titles"}, cacheRows(report.cache), []columnAlignment{alignLeft, alignRight}))
}

func usageRows(history []ledger.Usage, dailyQuota int) [][]string {
	rows := make([][]string, 0, len(history))
	for _, u := range history {
		remaining := "-"
		if r := u.Remaining(dailyQuota); r >= 0 {
			remaining = strconv.Itoa(r)
		}
		rows = append(rows, []string{u.Day, strconv.Itoa(u.Calls), remaining, yesNo(u.Exhausted())})
	}
	return rows
}

func runRows(runs []ledger.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Stage,
			r.Status.Label(),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Saved),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Calls),
			strconv.Itoa(r.Remaining),
			formatRunDuration(r),
		})
	}
	return rows
}

func cacheRows(counts []detailcache.YearCount) [][]string {
	total := 0
	rows := make([][]string, 0, len(counts)+1)
	for _, c := range counts {
		total += c.Count
		rows = append(rows, []string{c.Year, strconv.Itoa(c.Count)})
	}
	return append(rows, []string{"total", strconv.Itoa(total)})
}

func quotaSummary(report statusReport) (statusKind, string) {
	u := report.today
	switch {
	case u.Exhausted():
		return statusError, fmt.Sprintf("%d calls, quota exhausted at %s", u.Calls, u.ExhaustedAt.In(kobis.KST).Format("15:04 KST"))
	case report.dailyQuota > 0:
		remaining := u.Remaining(report.dailyQuota)
		kind := statusOK
		if remaining*10 < report.dailyQuota {
			kind = statusWarn
		}
		return kind, fmt.Sprintf("%d of %d calls used, %d left", u.Calls, report.dailyQuota, remaining)
	default:
		return statusInfo, fmt.Sprintf("%d calls, no local quota", u.Calls)
	}
}

func formatRunDuration(r ledger.Run) string {
	if r.Status == ledger.StatusRunning {
		return "running"
	}
	return r.Duration().Round(time.Second).String()
}

func runStatusKind(status services.RunStatus) statusKind {
	switch {
	case status.Failed():
		return statusError
	case status.Stopped():
		return statusWarn
	default:
		return statusOK
	}
}
