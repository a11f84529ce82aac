// Package aggregate computes the daily summary records. Each
// aggregator reads source records for one (subject, day) pair,
// classifies and tallies them, and writes a single fully-computed
// summary row through the idempotent summary store.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/testforge/rollup/pkg/classify"
	"github.com/testforge/rollup/pkg/source"
	"github.com/testforge/rollup/pkg/summary"
	"github.com/testforge/rollup/pkg/window"
)

// ExecutionAggregator computes test execution summaries.
type ExecutionAggregator interface {
	Aggregate(ctx context.Context, projectID uint, day time.Time) error
}

// Compile-time interface check.
var _ ExecutionAggregator = (*executionAggregator)(nil)

type executionAggregator struct {
	log    logrus.FieldLogger
	reader source.Reader
	store  summary.Store
}

// NewExecutionAggregator creates the test execution aggregator.
func NewExecutionAggregator(
	log logrus.FieldLogger,
	reader source.Reader,
	store summary.Store,
) ExecutionAggregator {
	return &executionAggregator{
		log:    log.WithField("component", "aggregate.execution"),
		reader: reader,
		store:  store,
	}
}

// Aggregate recomputes the execution summary for one (project, day).
func (a *executionAggregator) Aggregate(
	ctx context.Context, projectID uint, day time.Time,
) error {
	w := window.ForDay(day)

	runs, err := a.reader.ListRunsForDay(ctx, projectID, w)
	if err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_id": projectID,
			"day":        w.Day().Format("2006-01-02"),
		}).Error("Failed to read test runs")

		return fmt.Errorf("aggregating execution summary: %w", err)
	}

	row := &summary.TestExecutionSummary{
		ProjectID: projectID,
		Day:       w.Day(),
	}

	for _, run := range runs {
		// Runs without results stay out of every counter, including
		// the total.
		switch classify.RunOutcome(run.Results) {
		case classify.OutcomeNoResult:
			continue
		case classify.OutcomePassed:
			row.PassedRuns++
		case classify.OutcomeFailed:
			row.FailedRuns++
		case classify.OutcomeSkipped:
			row.SkippedRuns++
		case classify.OutcomeBlocked:
			row.BlockedRuns++
		case classify.OutcomeMixed:
			// Counts toward the total and the per-result tallies only.
		}

		row.TotalRuns++

		for _, res := range run.Results {
			row.TotalTestCases++

			if res.TestCase.Automated {
				row.AutomatedCount++
			} else {
				row.ManualCount++
			}

			if res.DurationMS != nil {
				row.TotalExecutionTimeMS += *res.DurationMS
				row.ExecutionTimeCount++
			}
		}
	}

	// No durations means no average, not an average of zero.
	if row.ExecutionTimeCount > 0 {
		avg := float64(row.TotalExecutionTimeMS) / float64(row.ExecutionTimeCount)
		row.AvgExecutionTimeMS = &avg
	}

	row.LastUpdatedAt = time.Now()

	if err := a.store.UpsertExecutionSummary(ctx, row); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_id": projectID,
			"day":        w.Day().Format("2006-01-02"),
		}).Error("Failed to write execution summary")

		return fmt.Errorf("aggregating execution summary: %w", err)
	}

	return nil
}
