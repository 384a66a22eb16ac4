package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/legallex/djenwatch/internal/config"
	"github.com/legallex/djenwatch/internal/fetch"
	"github.com/legallex/djenwatch/internal/model"
	"github.com/legallex/djenwatch/internal/results"
	"github.com/legallex/djenwatch/internal/rules"
	"github.com/legallex/djenwatch/internal/run"
	"github.com/legallex/djenwatch/internal/sched"
)

var (
	runDate    string
	runFrom    string
	runTo      string
	runTimeout time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one fetch-and-match cycle synchronously",
	Long: `Run executes a single fetch-and-match cycle: it loads the current rule
snapshot, pages through the upstream API for the target date range, evaluates
the rules, and persists the dated result artifact.

Without flags the target is the previous calendar day in the configured
time zone. The process exits 0 when the run produced a result (including
partial results with warnings) and non-zero when it failed.

Example:
  djenwatch run
  djenwatch run --date 2026-08-27
  djenwatch run --from 2026-08-20 --to 2026-08-27`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "single target date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "range start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runTo, "to", "", "range end date (YYYY-MM-DD)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	from, to, err := resolveRange(cfg.Location())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	trigger, err := config.ParseTriggerTime(cfg.Schedule.At)
	if err != nil {
		return err
	}

	runner := run.New(
		rules.NewStore(cfg.Storage.RulesFile),
		fetch.NewClient(cfg.API, logger),
		results.NewStore(cfg.Storage.ResultsDir, cfg.Storage.CacheTTL),
		logger,
	)

	// Manual runs go through the scheduler so its state machine rejects a
	// trigger while another run is active.
	scheduler := sched.New(runner, trigger, cfg.Location(), logger.With("component", "sched"))
	record, err := scheduler.TriggerNow(ctx, from, to)
	printSummary(record)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

// resolveRange turns the run flags into an inclusive date range, defaulting
// to the previous calendar day in the configured zone.
func resolveRange(loc *time.Location) (model.Date, model.Date, error) {
	if runDate != "" && (runFrom != "" || runTo != "") {
		return model.Date{}, model.Date{}, fmt.Errorf("--date cannot be combined with --from/--to")
	}
	if runDate != "" {
		d, err := model.ParseDate(runDate)
		if err != nil {
			return model.Date{}, model.Date{}, err
		}
		return d, d, nil
	}
	if runFrom != "" || runTo != "" {
		if runFrom == "" || runTo == "" {
			return model.Date{}, model.Date{}, fmt.Errorf("--from and --to must be given together")
		}
		from, err := model.ParseDate(runFrom)
		if err != nil {
			return model.Date{}, model.Date{}, err
		}
		to, err := model.ParseDate(runTo)
		if err != nil {
			return model.Date{}, model.Date{}, err
		}
		if to.BeforeDate(from) {
			return model.Date{}, model.Date{}, fmt.Errorf("--to %s is before --from %s", to, from)
		}
		return from, to, nil
	}

	yesterday := model.DateOf(time.Now().In(loc).AddDate(0, 0, -1))
	return yesterday, yesterday, nil
}

func printSummary(record *model.ExecutionRecord) {
	if record == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Run %s: %s\n", record.Date, record.Outcome)
	fmt.Fprintf(os.Stderr, "  fetched:  %d\n", record.Fetched)
	fmt.Fprintf(os.Stderr, "  matched:  %d\n", record.Matched)
	fmt.Fprintf(os.Stderr, "  excluded: %d\n", record.Excluded)
	if record.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "  skipped:  %d malformed records\n", record.Skipped)
	}
	for name, n := range record.RuleMatches {
		fmt.Fprintf(os.Stderr, "  rule %q: %d\n", name, n)
	}
	for _, w := range record.Warnings {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
	}
	for _, e := range record.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	fmt.Fprintf(os.Stderr, "  duration: %s\n", record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
}
