package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/testforge/rollup/pkg/source"
	"github.com/testforge/rollup/pkg/summary"
	"github.com/testforge/rollup/pkg/window"
)

// BugAggregator computes daily bug analytics.
type BugAggregator interface {
	Aggregate(ctx context.Context, subject source.BugSubject, day time.Time) error
}

// Compile-time interface check.
var _ BugAggregator = (*bugAggregator)(nil)

type bugAggregator struct {
	log    logrus.FieldLogger
	reader source.Reader
	store  summary.Store

	// closedStatuses is matched case-sensitively against bug status
	// strings for the bugsClosed counter.
	closedStatuses map[string]struct{}
}

// NewBugAggregator creates the bug analytics aggregator.
func NewBugAggregator(
	log logrus.FieldLogger,
	reader source.Reader,
	store summary.Store,
	closedStatuses []string,
) BugAggregator {
	closed := make(map[string]struct{}, len(closedStatuses))
	for _, s := range closedStatuses {
		closed[s] = struct{}{}
	}

	return &bugAggregator{
		log:            log.WithField("component", "aggregate.bugs"),
		reader:         reader,
		store:          store,
		closedStatuses: closed,
	}
}

// Aggregate recomputes the bug analytics row for one (subject, day).
func (a *bugAggregator) Aggregate(
	ctx context.Context, subject source.BugSubject, day time.Time,
) error {
	w := window.ForDay(day)

	bugs, err := a.reader.ListBugsAsOf(ctx, subject, w.End)
	if err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_name": subject.ProjectName,
			"day":          w.Day().Format("2006-01-02"),
		}).Error("Failed to read bugs")

		return fmt.Errorf("aggregating bug analytics: %w", err)
	}

	row := &summary.BugAnalyticsDaily{
		ProjectID:   subject.ProjectID,
		ProjectName: subject.ProjectName,
		Day:         w.Day(),
	}

	var (
		resolutionHours float64
		resolutionCount int
	)

	for _, bug := range bugs {
		if w.Contains(bug.CreatedAt) {
			row.BugsCreated++
		}

		resolvedInWindow := bug.ResolvedAt != nil && w.Contains(*bug.ResolvedAt)

		if resolvedInWindow && !bug.Open {
			row.BugsResolved++
		}

		if resolvedInWindow {
			if _, closed := a.closedStatuses[bug.Status]; closed {
				row.BugsClosed++
			}

			// CreatedAt is never null in the source; the guard is the
			// resolved timestamp.
			resolutionHours += bug.ResolvedAt.Sub(bug.CreatedAt).Hours()
			resolutionCount++
		}

		// Heuristic: open again while carrying a resolved timestamp.
		// There is no transition log to consult.
		if w.Contains(bug.UpdatedAt) && bug.Open && bug.ResolvedAt != nil {
			row.BugsReopened++
		}

		// Snapshot as of day end, not a same-day delta.
		existedByDayEnd := !bug.CreatedAt.After(w.End) || !bug.UpdatedAt.After(w.End)
		if bug.Open && existedByDayEnd {
			row.OpenBugs++

			// Literal label match, deliberately not the merged
			// priority buckets used for the test case catalog.
			switch bug.Priority {
			case source.PriorityCritical:
				row.CriticalBugs++
			case source.PriorityHigh:
				row.HighPriorityBugs++
			case source.PriorityMedium:
				row.MediumPriorityBugs++
			case source.PriorityLow:
				row.LowPriorityBugs++
			}
		}
	}

	if resolutionCount > 0 {
		avg := resolutionHours / float64(resolutionCount)
		row.AvgResolutionHours = &avg
	}

	row.LastUpdatedAt = time.Now()

	if err := a.store.UpsertBugAnalytics(ctx, row); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"project_name": subject.ProjectName,
			"day":          w.Day().Format("2006-01-02"),
		}).Error("Failed to write bug analytics")

		return fmt.Errorf("aggregating bug analytics: %w", err)
	}

	return nil
}
