// Package summary persists the derived daily summary records. All
// writes are idempotent full overwrites keyed by a composite identity;
// rows may be dropped and regenerated at any time.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrAlternateKeyConflict is returned when a create collides with the
// uniqueness constraint of the other candidate identity key of a bug
// analytics row. Callers treat it as "the row already exists under the
// other key", not as a failure.
var ErrAlternateKeyConflict = errors.New("summary row exists under alternate key")

// Store is the idempotent summary store.
type Store interface {
	Migrate(ctx context.Context) error

	UpsertExecutionSummary(ctx context.Context, row *TestExecutionSummary) error
	UpsertBugAnalytics(ctx context.Context, row *BugAnalyticsDaily) error
	UpsertTestCaseAnalytics(ctx context.Context, row *TestCaseAnalytics) error

	GetExecutionSummary(
		ctx context.Context, projectID uint, day time.Time,
	) (*TestExecutionSummary, error)
	GetBugAnalytics(
		ctx context.Context, projectID *uint, projectName string, day time.Time,
	) (*BugAnalyticsDaily, error)
	GetTestCaseAnalytics(
		ctx context.Context, projectID, repositoryID uint, day time.Time,
	) (*TestCaseAnalytics, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	db  *gorm.DB

	// writeMu serializes upserts so that two workers targeting the
	// same summary key can never interleave partial field writes, and
	// to avoid sqlite write contention.
	writeMu sync.Mutex
}

// NewStore creates a summary Store over the given database handle.
func NewStore(log logrus.FieldLogger, db *gorm.DB) Store {
	return &store{
		log: log.WithField("component", "summary"),
		db:  db,
	}
}

// Migrate creates the summary tables.
func (s *store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&TestExecutionSummary{},
		&BugAnalyticsDaily{},
		&TestCaseAnalytics{},
	); err != nil {
		return fmt.Errorf("running summary migrations: %w", err)
	}

	return nil
}

// UpsertExecutionSummary writes a test execution summary keyed by
// (project_id, day), overwriting every field of an existing row.
func (s *store) UpsertExecutionSummary(
	ctx context.Context, row *TestExecutionSummary,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var existing TestExecutionSummary

	err := s.db.WithContext(ctx).
		Where("project_id = ? AND day = ?", row.ProjectID, row.Day).
		First(&existing).Error

	switch {
	case err == nil:
		row.ID = existing.ID

		if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
			return fmt.Errorf("updating execution summary: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("creating execution summary: %w", err)
		}
	default:
		return fmt.Errorf("looking up execution summary: %w", err)
	}

	return nil
}

// UpsertBugAnalytics writes a bug analytics row. The identity key is
// resolved before the write: whichever candidate key already matches a
// row wins, the numeric key is the default for new rows, and the name
// key is used when no numeric reference is known. A raced create that
// still trips the alternate key's constraint is retried once against
// the name key.
func (s *store) UpsertBugAnalytics(
	ctx context.Context, row *BugAnalyticsDaily,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.findBugRow(ctx, row.ProjectID, row.ProjectName, row.Day)
	if err != nil {
		return err
	}

	if existing != nil {
		row.ID = existing.ID

		// A name-keyed row gains the numeric reference once it is
		// known; the reverse never drops it.
		if row.ProjectID == nil {
			row.ProjectID = existing.ProjectID
		}

		if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
			return fmt.Errorf("updating bug analytics: %w", err)
		}

		return nil
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicateKey(err) {
			return s.retryBugCreateByName(ctx, row)
		}

		return fmt.Errorf("creating bug analytics: %w", err)
	}

	return nil
}

// retryBugCreateByName handles the raced-create case: between the key
// lookup and the insert, another writer created the row under the
// alternate (name) key. Collapse onto it.
func (s *store) retryBugCreateByName(
	ctx context.Context, row *BugAnalyticsDaily,
) error {
	s.log.WithFields(logrus.Fields{
		"project_name": row.ProjectName,
		"day":          row.Day.Format("2006-01-02"),
	}).Debug("Bug analytics create hit alternate key, collapsing")

	var existing BugAnalyticsDaily

	err := s.db.WithContext(ctx).
		Where("project_name = ? AND day = ?", row.ProjectName, row.Day).
		First(&existing).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlternateKeyConflict, err)
	}

	row.ID = existing.ID
	if row.ProjectID == nil {
		row.ProjectID = existing.ProjectID
	}

	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("updating bug analytics after conflict: %w", err)
	}

	return nil
}

// findBugRow resolves the identity key for a (subject, day) pair by
// checking both candidate keys, numeric reference first.
func (s *store) findBugRow(
	ctx context.Context, projectID *uint, projectName string, day time.Time,
) (*BugAnalyticsDaily, error) {
	var existing BugAnalyticsDaily

	if projectID != nil {
		err := s.db.WithContext(ctx).
			Where("project_id = ? AND day = ?", *projectID, day).
			First(&existing).Error
		if err == nil {
			return &existing, nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("looking up bug analytics by project: %w", err)
		}
	}

	err := s.db.WithContext(ctx).
		Where("project_name = ? AND day = ?", projectName, day).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up bug analytics by name: %w", err)
	}

	return nil, nil
}

// UpsertTestCaseAnalytics writes a test case analytics row keyed by
// (project_id, repository_id, day).
func (s *store) UpsertTestCaseAnalytics(
	ctx context.Context, row *TestCaseAnalytics,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var existing TestCaseAnalytics

	err := s.db.WithContext(ctx).
		Where("project_id = ? AND repository_id = ? AND day = ?",
			row.ProjectID, row.RepositoryID, row.Day).
		First(&existing).Error

	switch {
	case err == nil:
		row.ID = existing.ID

		if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
			return fmt.Errorf("updating test case analytics: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("creating test case analytics: %w", err)
		}
	default:
		return fmt.Errorf("looking up test case analytics: %w", err)
	}

	return nil
}

func (s *store) GetExecutionSummary(
	ctx context.Context, projectID uint, day time.Time,
) (*TestExecutionSummary, error) {
	var row TestExecutionSummary
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND day = ?", projectID, day).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("getting execution summary: %w", err)
	}

	return &row, nil
}

// GetBugAnalytics looks a row up under whichever candidate key
// matches, numeric reference first.
func (s *store) GetBugAnalytics(
	ctx context.Context, projectID *uint, projectName string, day time.Time,
) (*BugAnalyticsDaily, error) {
	row, err := s.findBugRow(ctx, projectID, projectName, day)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, fmt.Errorf("getting bug analytics: %w", gorm.ErrRecordNotFound)
	}

	return row, nil
}

func (s *store) GetTestCaseAnalytics(
	ctx context.Context, projectID, repositoryID uint, day time.Time,
) (*TestCaseAnalytics, error) {
	var row TestCaseAnalytics
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND repository_id = ? AND day = ?",
			projectID, repositoryID, day).
		First(&row).Error; err != nil {
		return nil, fmt.Errorf("getting test case analytics: %w", err)
	}

	return &row, nil
}

// isDuplicateKey reports whether err is a uniqueness violation from
// any of the supported drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()

	// sqlite and postgres phrase the violation differently.
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
