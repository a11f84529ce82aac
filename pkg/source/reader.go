// Package source provides read-only access to the transactional
// records the rollup engine aggregates: test runs and their results,
// the test case catalog, and mirrored bug records. The CRUD layer owns
// these tables; nothing here writes to them.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/testforge/rollup/pkg/window"
)

// Reader is the query surface the aggregators and the scheduler
// consume.
type Reader interface {
	// ListRunsForDay returns a project's runs whose execution date
	// falls inside the day window, with results and the linked test
	// case (for its automation flag) preloaded.
	ListRunsForDay(
		ctx context.Context, projectID uint, w window.Window,
	) ([]TestRun, error)

	// ListBugsAsOf returns a subject's bugs that existed by the given
	// instant (created or updated on or before it). Subjects carrying
	// a numeric reference match on it; otherwise the name is used.
	ListBugsAsOf(
		ctx context.Context, subject BugSubject, asOf time.Time,
	) ([]Bug, error)

	// ListTestCasesAsOf returns a repository's non-deleted test cases
	// that existed by the given instant.
	ListTestCasesAsOf(
		ctx context.Context, repositoryID uint, asOf time.Time,
	) ([]TestCase, error)

	// Subject discovery for range runs.
	ListProjects(ctx context.Context) ([]Project, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	ListBugSubjects(ctx context.Context) ([]BugSubject, error)
}

// Compile-time interface check.
var _ Reader = (*reader)(nil)

type reader struct {
	log logrus.FieldLogger
	db  *gorm.DB
}

// NewReader creates a Reader over the given database handle.
func NewReader(log logrus.FieldLogger, db *gorm.DB) Reader {
	return &reader{
		log: log.WithField("component", "source"),
		db:  db,
	}
}

// Migrate creates the transactional tables. Production deployments
// share the CRUD application's database where these already exist;
// this is for tests and standalone sqlite setups.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&Project{},
		&Repository{},
		&TestCase{},
		&TestRun{},
		&TestResult{},
		&Bug{},
	); err != nil {
		return fmt.Errorf("running source migrations: %w", err)
	}

	return nil
}

func (r *reader) ListRunsForDay(
	ctx context.Context, projectID uint, w window.Window,
) ([]TestRun, error) {
	var runs []TestRun
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND execution_date BETWEEN ? AND ?",
			projectID, w.Start, w.End).
		Preload("Results").
		Preload("Results.TestCase").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs for day: %w", err)
	}

	return runs, nil
}

func (r *reader) ListBugsAsOf(
	ctx context.Context, subject BugSubject, asOf time.Time,
) ([]Bug, error) {
	q := r.db.WithContext(ctx).
		Where("created_at <= ? OR updated_at <= ?", asOf, asOf)

	if subject.ProjectID != nil {
		q = q.Where("project_id = ?", *subject.ProjectID)
	} else {
		q = q.Where("project_name = ?", subject.ProjectName)
	}

	var bugs []Bug
	if err := q.Find(&bugs).Error; err != nil {
		return nil, fmt.Errorf("listing bugs: %w", err)
	}

	return bugs, nil
}

func (r *reader) ListTestCasesAsOf(
	ctx context.Context, repositoryID uint, asOf time.Time,
) ([]TestCase, error) {
	var cases []TestCase
	if err := r.db.WithContext(ctx).
		Where("repository_id = ? AND (created_at <= ? OR updated_at <= ?)",
			repositoryID, asOf, asOf).
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("listing test cases: %w", err)
	}

	return cases, nil
}

func (r *reader) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return projects, nil
}

func (r *reader) ListRepositories(
	ctx context.Context,
) ([]Repository, error) {
	var repos []Repository
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	return repos, nil
}

// ListBugSubjects returns the distinct project identities seen in bug
// records. Bugs that carry both a reference and a name collapse onto
// the referenced identity.
func (r *reader) ListBugSubjects(
	ctx context.Context,
) ([]BugSubject, error) {
	var rows []Bug
	if err := r.db.WithContext(ctx).
		Distinct("project_id", "project_name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing bug subjects: %w", err)
	}

	seenID := make(map[uint]struct{}, len(rows))
	seenName := make(map[string]struct{}, len(rows))
	subjects := make([]BugSubject, 0, len(rows))

	// Referenced identities first; a name already covered by a
	// referenced identity is the same logical subject.
	for _, row := range rows {
		if row.ProjectID == nil {
			continue
		}

		if _, ok := seenID[*row.ProjectID]; ok {
			continue
		}

		seenID[*row.ProjectID] = struct{}{}
		seenName[row.ProjectName] = struct{}{}
		subjects = append(subjects, BugSubject{
			ProjectID:   row.ProjectID,
			ProjectName: row.ProjectName,
		})
	}

	for _, row := range rows {
		if row.ProjectID != nil {
			continue
		}

		if _, ok := seenName[row.ProjectName]; ok {
			continue
		}

		seenName[row.ProjectName] = struct{}{}
		subjects = append(subjects, BugSubject{
			ProjectName: row.ProjectName,
		})
	}

	return subjects, nil
}
