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

// TestCaseAggregator computes test case catalog analytics.
type TestCaseAggregator interface {
	Aggregate(
		ctx context.Context, projectID, repositoryID uint, day time.Time,
	) error
}

// Compile-time interface check.
var _ TestCaseAggregator = (*testCaseAggregator)(nil)

type testCaseAggregator struct {
	log    logrus.FieldLogger
	reader source.Reader
	store  summary.Store
}

// NewTestCaseAggregator creates the test case analytics aggregator.
func NewTestCaseAggregator(
	log logrus.FieldLogger,
	reader source.Reader,
	store summary.Store,
) TestCaseAggregator {
	return &testCaseAggregator{
		log:    log.WithField("component", "aggregate.testcases"),
		reader: reader,
		store:  store,
	}
}

// Aggregate recomputes the catalog snapshot for one
// (project, repository, day). Totals are cumulative as-of-day-end,
// matching the openBugs snapshot semantics.
func (a *testCaseAggregator) Aggregate(
	ctx context.Context, projectID, repositoryID uint, day time.Time,
) error {
	w := window.ForDay(day)

	cases, err := a.reader.ListTestCasesAsOf(ctx, repositoryID, w.End)
	if err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_id":    projectID,
			"repository_id": repositoryID,
			"day":           w.Day().Format("2006-01-02"),
		}).Error("Failed to read test cases")

		return fmt.Errorf("aggregating test case analytics: %w", err)
	}

	row := &summary.TestCaseAnalytics{
		ProjectID:    projectID,
		RepositoryID: repositoryID,
		Day:          w.Day(),
	}

	for _, tc := range cases {
		row.TotalCases++

		if tc.Automated {
			row.AutomatedCases++
		} else {
			row.ManualCases++
		}

		// Merged buckets here: critical counts as high.
		switch classify.PriorityBucket(tc.Priority) {
		case classify.BucketHigh:
			row.HighPriorityCases++
		case classify.BucketMedium:
			row.MediumPriorityCases++
		case classify.BucketLow:
			row.LowPriorityCases++
		case classify.BucketNone:
			// Counted in the total only.
		}

		if tc.Regression {
			row.RegressionCases++
		}
	}

	row.LastUpdatedAt = time.Now()

	if err := a.store.UpsertTestCaseAnalytics(ctx, row); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_id":    projectID,
			"repository_id": repositoryID,
			"day":           w.Day().Format("2006-01-02"),
		}).Error("Failed to write test case analytics")

		return fmt.Errorf("aggregating test case analytics: %w", err)
	}

	return nil
}
