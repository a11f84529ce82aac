package source

import (
	"time"

	"gorm.io/gorm"
)

// Test result statuses as recorded by the CRUD layer.
const (
	StatusPassed     = "passed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
	StatusBlocked    = "blocked"
	StatusInProgress = "inProgress"
)

// Canonical priority labels stored on test cases and bugs.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Project is a tenant project.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository is a test repository within a project.
type Repository struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestCase is a test case definition in the catalog.
type TestCase struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ProjectID    uint           `gorm:"not null;index" json:"project_id"`
	RepositoryID uint           `gorm:"not null;index" json:"repository_id"`
	Title        string         `gorm:"not null" json:"title"`
	Priority     string         `json:"priority"`
	Automated    bool           `json:"automated"`
	Regression   bool           `json:"regression"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TestRun is a single execution of a set of test cases. Its outcome is
// derived from the attached results, never stored.
type TestRun struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProjectID     uint         `gorm:"not null;index" json:"project_id"`
	Name          string       `json:"name"`
	ExecutionDate time.Time    `gorm:"not null;index" json:"execution_date"`
	Results       []TestResult `gorm:"foreignKey:TestRunID" json:"results"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TestResult is one per-case result inside a run. DurationMS is nil
// when the runner did not report a duration; nil and 0 are different
// states.
type TestResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TestRunID  uint      `gorm:"not null;index" json:"test_run_id"`
	TestCaseID uint      `gorm:"not null;index" json:"test_case_id"`
	Status     string    `gorm:"not null" json:"status"`
	DurationMS *int64    `json:"duration_ms"`
	TestCase   TestCase  `gorm:"foreignKey:TestCaseID" json:"test_case"`
	CreatedAt  time.Time `json:"created_at"`
}

// Bug mirrors an issue-tracker record. A bug is attached to a project
// either by numeric reference or by free-text name; either may be the
// only identity present depending on how the record was ingested.
type Bug struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   *uint      `gorm:"index" json:"project_id"`
	ProjectName string     `gorm:"index" json:"project_name"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Open        bool       `gorm:"index" json:"open"`
	Priority    string     `json:"priority"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

// BugSubject identifies the project a bug-analytics row is computed
// for. ProjectID is nil when only the free-text name is known.
type BugSubject struct {
	ProjectID   *uint
	ProjectName string
}
