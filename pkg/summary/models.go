package summary

import (
	"time"
)

// TestExecutionSummary is the per-(project, day) rollup of test runs.
// One row per key; recomputing overwrites every field.
type TestExecutionSummary struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_exec_project_day,priority:1" json:"project_id"`
	Day       time.Time `gorm:"not null;uniqueIndex:idx_exec_project_day,priority:2" json:"day"`

	TotalRuns   int `json:"total_runs"`
	PassedRuns  int `json:"passed_runs"`
	FailedRuns  int `json:"failed_runs"`
	SkippedRuns int `json:"skipped_runs"`
	BlockedRuns int `json:"blocked_runs"`

	// TotalTestCases counts result entries, not runs.
	TotalTestCases int `json:"total_test_cases"`
	AutomatedCount int `json:"automated_count"`
	ManualCount    int `json:"manual_count"`

	TotalExecutionTimeMS int64 `json:"total_execution_time_ms"`
	ExecutionTimeCount   int64 `json:"execution_time_count"`
	// AvgExecutionTimeMS is nil when no result reported a duration;
	// nil and 0 are distinct states.
	AvgExecutionTimeMS *float64 `json:"avg_execution_time_ms"`

	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// BugAnalyticsDaily is the per-(project, day) rollup of bug records.
// A row is keyed by EITHER the numeric project reference or the
// free-text project name, depending on how the underlying bugs were
// ingested; both uniqueness constraints exist and exactly one governs
// each row. Multiple NULL project_id rows are permitted by both
// sqlite and postgres, so name-keyed rows do not collide on the
// project index.
type BugAnalyticsDaily struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   *uint     `gorm:"uniqueIndex:idx_bug_project_day,priority:1" json:"project_id"`
	ProjectName string    `gorm:"uniqueIndex:idx_bug_name_day,priority:1" json:"project_name"`
	Day         time.Time `gorm:"not null;uniqueIndex:idx_bug_project_day,priority:2;uniqueIndex:idx_bug_name_day,priority:2" json:"day"`

	BugsCreated  int `json:"bugs_created"`
	BugsResolved int `json:"bugs_resolved"`
	BugsClosed   int `json:"bugs_closed"`
	// BugsReopened is a heuristic: open again while carrying a
	// resolved timestamp. The source exposes no transition log.
	BugsReopened int `json:"bugs_reopened"`
	// OpenBugs is a snapshot as of day end, not a same-day delta.
	OpenBugs int `json:"open_bugs"`

	CriticalBugs       int `json:"critical_bugs"`
	HighPriorityBugs   int `json:"high_priority_bugs"`
	MediumPriorityBugs int `json:"medium_priority_bugs"`
	LowPriorityBugs    int `json:"low_priority_bugs"`

	AvgResolutionHours *float64 `json:"avg_resolution_hours"`

	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// TestCaseAnalytics is the per-(project, repository, day) snapshot of
// the test case catalog.
type TestCaseAnalytics struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProjectID    uint      `gorm:"not null;uniqueIndex:idx_case_repo_day,priority:1" json:"project_id"`
	RepositoryID uint      `gorm:"not null;uniqueIndex:idx_case_repo_day,priority:2" json:"repository_id"`
	Day          time.Time `gorm:"not null;uniqueIndex:idx_case_repo_day,priority:3" json:"day"`

	TotalCases     int `json:"total_cases"`
	AutomatedCases int `json:"automated_cases"`
	ManualCases    int `json:"manual_cases"`

	HighPriorityCases   int `json:"high_priority_cases"`
	MediumPriorityCases int `json:"medium_priority_cases"`
	LowPriorityCases    int `json:"low_priority_cases"`

	RegressionCases int `json:"regression_cases"`

	LastUpdatedAt time.Time `json:"last_updated_at"`
}
