// Package scheduler turns a date range into a list of rollup units
// (subject × day × summary kind) and executes them on a bounded worker
// pool. Every unit is an idempotent full-overwrite computation, so a
// failed or interrupted range is always safe to re-run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/testforge/rollup/pkg/aggregate"
	"github.com/testforge/rollup/pkg/source"
	"github.com/testforge/rollup/pkg/window"
)

// Kind identifies which summary a unit computes.
type Kind string

// Summary kinds.
const (
	KindExecution Kind = "execution"
	KindBugs      Kind = "bugs"
	KindTestCases Kind = "testcases"
)

// Subject is the entity a rollup unit is computed for. The fields in
// use depend on Kind: ProjectID for execution summaries, ProjectID +
// RepositoryID for test case analytics, Bug for bug analytics.
type Subject struct {
	Kind         Kind
	ProjectID    uint
	RepositoryID uint
	Bug          source.BugSubject
}

// Label returns a short subject description for logs and reports.
func (s Subject) Label() string {
	switch s.Kind {
	case KindExecution:
		return fmt.Sprintf("project %d", s.ProjectID)
	case KindBugs:
		if s.Bug.ProjectID != nil {
			return fmt.Sprintf("project %d (%s)", *s.Bug.ProjectID, s.Bug.ProjectName)
		}

		return fmt.Sprintf("project %q", s.Bug.ProjectName)
	case KindTestCases:
		return fmt.Sprintf("project %d repository %d", s.ProjectID, s.RepositoryID)
	default:
		return "unknown"
	}
}

// UnitFailure records one failed rollup unit in a continue-on-error
// range run.
type UnitFailure struct {
	Kind    Kind
	Subject string
	Day     time.Time
	Err     string
}

// Report summarizes a range run.
type Report struct {
	Units     int
	Completed int
	PerKind   map[Kind]int
	Failures  []UnitFailure
}

// Scheduler executes rollups for subjects and date ranges.
type Scheduler interface {
	// RunForSubjectAndDay computes a single unit and propagates the
	// aggregator's error.
	RunForSubjectAndDay(ctx context.Context, subject Subject, day time.Time) error

	// RunForRange discovers the current subject sets and computes
	// every (subject, day, kind) unit for each calendar day in
	// [start, end] inclusive. Fail-fast unless continue-on-error is
	// configured; in that mode all units run and the returned error
	// summarizes the failures collected in the report.
	RunForRange(ctx context.Context, start, end time.Time) (*Report, error)

	// RunForYesterday rolls up yesterday only.
	RunForYesterday(ctx context.Context) (*Report, error)

	// RunForLastNDays rolls up [today-n, today].
	RunForLastNDays(ctx context.Context, n int) (*Report, error)
}

// Compile-time interface check.
var _ Scheduler = (*scheduler)(nil)

// Options tunes a Scheduler.
type Options struct {
	// Location is the timezone day windows are computed in.
	Location *time.Location

	// Concurrency bounds the number of units computed in parallel.
	// Correctness does not depend on it; summary writes are atomic
	// per key.
	Concurrency int

	// ContinueOnError runs every unit even after failures and reports
	// them instead of aborting the range.
	ContinueOnError bool
}

type scheduler struct {
	log             logrus.FieldLogger
	reader          source.Reader
	execution       aggregate.ExecutionAggregator
	bugs            aggregate.BugAggregator
	testCases       aggregate.TestCaseAggregator
	loc             *time.Location
	concurrency     int
	continueOnError bool

	now func() time.Time
}

// New creates a Scheduler.
func New(
	log logrus.FieldLogger,
	reader source.Reader,
	execution aggregate.ExecutionAggregator,
	bugs aggregate.BugAggregator,
	testCases aggregate.TestCaseAggregator,
	opts Options,
) Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &scheduler{
		log:             log.WithField("component", "scheduler"),
		reader:          reader,
		execution:       execution,
		bugs:            bugs,
		testCases:       testCases,
		loc:             loc,
		concurrency:     concurrency,
		continueOnError: opts.ContinueOnError,
		now:             time.Now,
	}
}

// RunForSubjectAndDay dispatches one unit to its aggregator.
func (s *scheduler) RunForSubjectAndDay(
	ctx context.Context, subject Subject, day time.Time,
) error {
	day = window.Midnight(day.In(s.loc))

	switch subject.Kind {
	case KindExecution:
		return s.execution.Aggregate(ctx, subject.ProjectID, day)
	case KindBugs:
		return s.bugs.Aggregate(ctx, subject.Bug, day)
	case KindTestCases:
		return s.testCases.Aggregate(ctx, subject.ProjectID, subject.RepositoryID, day)
	default:
		return fmt.Errorf("unknown summary kind: %s", subject.Kind)
	}
}

type unit struct {
	subject Subject
	day     time.Time
}

// RunForRange builds the unit list and executes it.
func (s *scheduler) RunForRange(
	ctx context.Context, start, end time.Time,
) (*Report, error) {
	days := window.Days(start.In(s.loc), end.In(s.loc))
	if len(days) == 0 {
		return nil, fmt.Errorf("invalid range: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	units, err := s.buildUnits(ctx, days)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"days":  len(days),
		"units": len(units),
		"from":  days[0].Format("2006-01-02"),
		"to":    days[len(days)-1].Format("2006-01-02"),
	}).Info("Starting rollup range")

	report := &Report{
		Units:   len(units),
		PerKind: make(map[Kind]int, 3),
	}

	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, u := range units {
		g.Go(func() error {
			// Check for cancellation before starting work.
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			if err := s.RunForSubjectAndDay(gCtx, u.subject, u.day); err != nil {
				if !s.continueOnError {
					return err
				}

				mu.Lock()
				report.Failures = append(report.Failures, UnitFailure{
					Kind:    u.subject.Kind,
					Subject: u.subject.Label(),
					Day:     u.day,
					Err:     err.Error(),
				})
				mu.Unlock()

				return nil
			}

			mu.Lock()
			report.Completed++
			report.PerKind[u.subject.Kind]++
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("rollup range aborted: %w", err)
	}

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("%d of %d rollup units failed",
			len(report.Failures), report.Units)
	}

	s.log.WithField("units", report.Completed).Info("Rollup range completed")

	return report, nil
}

// RunForYesterday runs the range covering only yesterday.
func (s *scheduler) RunForYesterday(ctx context.Context) (*Report, error) {
	yesterday := window.Midnight(s.now().In(s.loc).AddDate(0, 0, -1))

	return s.RunForRange(ctx, yesterday, yesterday)
}

// RunForLastNDays runs the range [today-n, today].
func (s *scheduler) RunForLastNDays(
	ctx context.Context, n int,
) (*Report, error) {
	if n < 0 {
		return nil, fmt.Errorf("day count must not be negative: %d", n)
	}

	today := window.Midnight(s.now().In(s.loc))

	return s.RunForRange(ctx, today.AddDate(0, 0, -n), today)
}

// buildUnits discovers the current subject sets and crosses them with
// the day list. Discovery is fresh per call; subjects added since the
// last run are picked up, removed ones are skipped.
func (s *scheduler) buildUnits(
	ctx context.Context, days []time.Time,
) ([]unit, error) {
	projects, err := s.reader.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering projects: %w", err)
	}

	repos, err := s.reader.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering repositories: %w", err)
	}

	bugSubjects, err := s.reader.ListBugSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering bug subjects: %w", err)
	}

	units := make([]unit, 0,
		len(days)*(len(projects)+len(repos)+len(bugSubjects)))

	for _, day := range days {
		for _, p := range projects {
			units = append(units, unit{
				subject: Subject{Kind: KindExecution, ProjectID: p.ID},
				day:     day,
			})
		}

		for _, b := range bugSubjects {
			units = append(units, unit{
				subject: Subject{Kind: KindBugs, Bug: b},
				day:     day,
			})
		}

		for _, r := range repos {
			units = append(units, unit{
				subject: Subject{
					Kind:         KindTestCases,
					ProjectID:    r.ProjectID,
					RepositoryID: r.ID,
				},
				day: day,
			})
		}
	}

	return units, nil
}
