package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"marquee/internal/config"
	"marquee/internal/pipeline"
	"marquee/internal/services"
)

type yearRange struct {
	start int
	end   int
}

func (r *yearRange) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&r.start, "year-start", 0, "First release year to process")
	cmd.Flags().IntVar(&r.end, "year-end", 0, "Last release year to process")
	_ = cmd.MarkFlagRequired("year-start")
	_ = cmd.MarkFlagRequired("year-end")
}

func (r yearRange) validate() error {
	if r.start <= 0 || r.end < r.start {
		return fmt.Errorf("invalid year range %d..%d", r.start, r.end)
	}
	return nil
}

func newYearsCommand(ctx *commandContext) *cobra.Command {
	var years yearRange
	cmd := &cobra.Command{
		Use:   "years",
		Short: "Fetch candidate lists for years without a stored list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := years.validate(); err != nil {
				return err
			}
			return ctx.withEnv(true, func(env *pipeline.Env) error {
				sum, err := env.Years(cmd.Context(), years.start, years.end)
				printSummaries(cmd.OutOrStdout(), sum)
				return err
			})
		},
	}
	years.register(cmd)
	return cmd
}

func newDetailsCommand(ctx *commandContext) *cobra.Command {
	var years yearRange
	var refresh bool
	var maxSaves int
	var budget int
	var audienceMode string
	var audienceDays int

	cmd := &cobra.Command{
		Use:   "details",
		Short: "Fetch, normalize and cache titles that are not cached yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := years.validate(); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyAudienceFlags(cfg, audienceMode, audienceDays, cmd.Flags().Changed("audience-days")); err != nil {
				return err
			}
			return ctx.withEnv(true, func(env *pipeline.Env) error {
				sum, err := env.Details(cmd.Context(), pipeline.DetailsOptions{
					YearStart:       years.start,
					YearEnd:         years.end,
					RefreshAudience: refresh,
					MaxSaves:        maxSaves,
					Budget:          budget,
				})
				printSummaries(cmd.OutOrStdout(), sum)
				return err
			})
		},
	}
	years.register(cmd)
	cmd.Flags().BoolVar(&refresh, "refresh-audience", false, "Re-estimate audience for cached titles whose figure is unknown")
	cmd.Flags().IntVar(&maxSaves, "max", 0, "Stop after saving this many titles (default details.max_saves)")
	cmd.Flags().IntVar(&budget, "budget", 0, "Upstream call budget for this run (default details.budget)")
	cmd.Flags().StringVar(&audienceMode, "audience", "", "Audience estimation mode: off, recent, or all (default audience.mode)")
	cmd.Flags().IntVar(&audienceDays, "audience-days", 0, "Release window in days for --audience recent")
	return cmd
}

func applyAudienceFlags(cfg *config.Config, mode string, days int, daysSet bool) error {
	switch mode {
	case "":
	case config.AudienceOff, config.AudienceRecent, config.AudienceAll:
		cfg.Audience.Mode = mode
	default:
		return fmt.Errorf("--audience: unsupported value %q (want off, recent, or all)", mode)
	}
	if daysSet {
		if days < 0 {
			return fmt.Errorf("--audience-days must not be negative")
		}
		cfg.Audience.RecentDays = days
	}
	return nil
}

func newBackfillCommand(ctx *commandContext) *cobra.Command {
	var budget int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Refetch cached titles that have no directors or actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(true, func(env *pipeline.Env) error {
				sum, err := env.Backfill(cmd.Context(), pipeline.BackfillOptions{Budget: budget})
				printSummaries(cmd.OutOrStdout(), sum)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "Upstream call budget for this run (default backfill.budget)")
	return cmd
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the movie and person indexes from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(true, func(env *pipeline.Env) error {
				sum, err := env.Index(cmd.Context())
				printSummaries(cmd.OutOrStdout(), sum)
				return err
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var years yearRange
	var refresh bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run years, details and index in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := years.validate(); err != nil {
				return err
			}
			return ctx.withEnv(true, func(env *pipeline.Env) error {
				summaries, err := env.Run(cmd.Context(), pipeline.RunOptions{
					YearStart:       years.start,
					YearEnd:         years.end,
					RefreshAudience: refresh,
				})
				printSummaries(cmd.OutOrStdout(), summaries...)
				return err
			})
		},
	}
	years.register(cmd)
	cmd.Flags().BoolVar(&refresh, "refresh-audience", false, "Re-estimate audience for cached titles whose figure is unknown")
	return cmd
}

func printSummaries(out io.Writer, summaries ...pipeline.Summary) {
	for _, s := range summaries {
		fmt.Fprintln(out, s.Line())
		switch s.Status {
		case services.StatusStoppedQuota:
			fmt.Fprintf(out, "  %d items remain; rerun after the daily quota resets (midnight KST)\n", s.Remaining)
		case services.StatusStoppedBudget:
			fmt.Fprintf(out, "  %d items remain; rerun to continue with a fresh budget\n", s.Remaining)
		}
	}
}
