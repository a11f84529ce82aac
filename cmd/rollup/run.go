package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/testforge/rollup/pkg/aggregate"
	"github.com/testforge/rollup/pkg/config"
	"github.com/testforge/rollup/pkg/database"
	"github.com/testforge/rollup/pkg/scheduler"
	"github.com/testforge/rollup/pkg/source"
	"github.com/testforge/rollup/pkg/summary"
)

var (
	flagDate      string
	flagFrom      string
	flagTo        string
	flagYesterday bool
	flagLastDays  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute daily summaries",
	Long: `Recompute the daily summary records for a day or a date range.
Exactly one of --date, --from/--to, --yesterday or --last-days selects
the range. Subjects (projects, repositories, bug tracker identities)
are discovered from the database at the start of the run.`,
	RunE: runRollup,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&flagDate, "date", "",
		"Roll up a single day (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&flagFrom, "from", "",
		"Range start day (YYYY-MM-DD), requires --to")
	runCmd.Flags().StringVar(&flagTo, "to", "",
		"Range end day (YYYY-MM-DD), requires --from")
	runCmd.Flags().BoolVar(&flagYesterday, "yesterday", false,
		"Roll up yesterday")
	runCmd.Flags().IntVar(&flagLastDays, "last-days", -1,
		"Roll up the last N days including today")
}

func runRollup(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// The config file may raise the level chosen on the command line.
	if !cmd.Flags().Changed("log-level") {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err == nil {
			log.SetLevel(level)
		}
	}

	// Setup context with signal handling; a signal stops the run
	// between rollup units.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	db, err := database.Open(log, &cfg.Database)
	if err != nil {
		return err
	}

	defer func() {
		if err := database.Close(db); err != nil {
			log.WithError(err).Warn("Failed to close database")
		}
	}()

	store := summary.NewStore(log, db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	reader := source.NewReader(log, db)

	sched := scheduler.New(
		log,
		reader,
		aggregate.NewExecutionAggregator(log, reader, store),
		aggregate.NewBugAggregator(log, reader, store, cfg.Rollup.ClosedStatuses),
		aggregate.NewTestCaseAggregator(log, reader, store),
		scheduler.Options{
			Location:        cfg.Location(),
			Concurrency:     cfg.Rollup.Concurrency,
			ContinueOnError: cfg.Rollup.ContinueOnError,
		},
	)

	report, runErr := dispatch(ctx, sched, cfg.Location())

	if report != nil {
		if err := printReport(report); err != nil {
			log.WithError(err).Warn("Failed to render report")
		}
	}

	return runErr
}

// dispatch picks the scheduler entry point matching the range flags.
func dispatch(
	ctx context.Context, sched scheduler.Scheduler, loc *time.Location,
) (*scheduler.Report, error) {
	switch {
	case flagYesterday:
		return sched.RunForYesterday(ctx)
	case flagLastDays >= 0:
		return sched.RunForLastNDays(ctx, flagLastDays)
	case flagDate != "":
		day, err := parseDay(flagDate, loc)
		if err != nil {
			return nil, err
		}

		return sched.RunForRange(ctx, day, day)
	case flagFrom != "" || flagTo != "":
		if flagFrom == "" || flagTo == "" {
			return nil, fmt.Errorf("--from and --to must be used together")
		}

		from, err := parseDay(flagFrom, loc)
		if err != nil {
			return nil, err
		}

		to, err := parseDay(flagTo, loc)
		if err != nil {
			return nil, err
		}

		return sched.RunForRange(ctx, from, to)
	default:
		return nil, fmt.Errorf(
			"a range is required: --date, --from/--to, --yesterday or --last-days")
	}
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}

	return day, nil
}

// printReport renders the per-kind unit counts and any per-unit
// failures of a range run.
func printReport(report *scheduler.Report) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Kind", "Completed"})

	data := [][]string{
		{string(scheduler.KindExecution),
			strconv.Itoa(report.PerKind[scheduler.KindExecution])},
		{string(scheduler.KindBugs),
			strconv.Itoa(report.PerKind[scheduler.KindBugs])},
		{string(scheduler.KindTestCases),
			strconv.Itoa(report.PerKind[scheduler.KindTestCases])},
		{"total", fmt.Sprintf("%d/%d", report.Completed, report.Units)},
	}

	if err := table.Bulk(data); err != nil {
		return err
	}

	if err := table.Render(); err != nil {
		return err
	}

	if len(report.Failures) == 0 {
		return nil
	}

	failed := tablewriter.NewWriter(os.Stdout)
	failed.Header([]string{"Kind", "Subject", "Day", "Error"})

	rows := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		rows = append(rows, []string{
			string(f.Kind),
			f.Subject,
			f.Day.Format("2006-01-02"),
			f.Err,
		})
	}

	if err := failed.Bulk(rows); err != nil {
		return err
	}

	return failed.Render()
}
