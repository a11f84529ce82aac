package summary_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/rollup/pkg/config"
	"github.com/testforge/rollup/pkg/database"
	"github.com/testforge/rollup/pkg/summary"
)

func setupTestStore(t *testing.T) summary.Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	db, err := database.Open(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close(db) })

	s := summary.NewStore(log, db)
	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func uintPtr(v uint) *uint { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertExecutionSummary_OverwritesInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 1)

	avg := 125.5
	first := &summary.TestExecutionSummary{
		ProjectID:          7,
		Day:                d,
		TotalRuns:          3,
		PassedRuns:         2,
		FailedRuns:         1,
		TotalTestCases:     12,
		AvgExecutionTimeMS: &avg,
		LastUpdatedAt:      time.Now(),
	}
	require.NoError(t, s.UpsertExecutionSummary(ctx, first))

	// Recompute with different numbers: the row is overwritten, not
	// duplicated, and zero/nil fields really overwrite.
	second := &summary.TestExecutionSummary{
		ProjectID:      7,
		Day:            d,
		TotalRuns:      1,
		PassedRuns:     1,
		TotalTestCases: 4,
		LastUpdatedAt:  time.Now(),
	}
	require.NoError(t, s.UpsertExecutionSummary(ctx, second))

	got, err := s.GetExecutionSummary(ctx, 7, d)
	require.NoError(t, err)

	assert.Equal(t, first.ID, got.ID, "same row must be reused")
	assert.Equal(t, 1, got.TotalRuns)
	assert.Equal(t, 0, got.FailedRuns, "counters must reset to zero")
	assert.Nil(t, got.AvgExecutionTimeMS, "nil average must overwrite")
}

func TestUpsertExecutionSummary_SeparateKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d1 := day(2026, 6, 1)
	d2 := day(2026, 6, 2)

	require.NoError(t, s.UpsertExecutionSummary(ctx,
		&summary.TestExecutionSummary{ProjectID: 1, Day: d1, TotalRuns: 5}))
	require.NoError(t, s.UpsertExecutionSummary(ctx,
		&summary.TestExecutionSummary{ProjectID: 1, Day: d2, TotalRuns: 9}))
	require.NoError(t, s.UpsertExecutionSummary(ctx,
		&summary.TestExecutionSummary{ProjectID: 2, Day: d1, TotalRuns: 4}))

	got, err := s.GetExecutionSummary(ctx, 1, d2)
	require.NoError(t, err)
	assert.Equal(t, 9, got.TotalRuns)

	got, err = s.GetExecutionSummary(ctx, 2, d1)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalRuns)
}

func TestUpsertBugAnalytics_ProjectKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 3)

	row := &summary.BugAnalyticsDaily{
		ProjectID:   uintPtr(11),
		ProjectName: "Orion",
		Day:         d,
		BugsCreated: 2,
		OpenBugs:    5,
	}
	require.NoError(t, s.UpsertBugAnalytics(ctx, row))

	again := &summary.BugAnalyticsDaily{
		ProjectID:   uintPtr(11),
		ProjectName: "Orion",
		Day:         d,
		BugsCreated: 3,
		OpenBugs:    4,
	}
	require.NoError(t, s.UpsertBugAnalytics(ctx, again))

	got, err := s.GetBugAnalytics(ctx, uintPtr(11), "Orion", d)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, 3, got.BugsCreated)
	assert.Equal(t, 4, got.OpenBugs)
}

func TestUpsertBugAnalytics_NameKeyOnly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 3)

	row := &summary.BugAnalyticsDaily{
		ProjectName: "Lyra",
		Day:         d,
		BugsCreated: 1,
	}
	require.NoError(t, s.UpsertBugAnalytics(ctx, row))
	require.NoError(t, s.UpsertBugAnalytics(ctx, &summary.BugAnalyticsDaily{
		ProjectName: "Lyra",
		Day:         d,
		BugsCreated: 2,
	}))

	got, err := s.GetBugAnalytics(ctx, nil, "Lyra", d)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, 2, got.BugsCreated)
	assert.Nil(t, got.ProjectID)
}

// A subject first seen only by name, later re-ingested with a numeric
// reference: repeated writes must collapse onto the existing row and
// attach the reference, never create a second row.
func TestUpsertBugAnalytics_DualKeyConvergence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 4)

	nameOnly := &summary.BugAnalyticsDaily{
		ProjectName: "Vega",
		Day:         d,
		BugsCreated: 1,
	}
	require.NoError(t, s.UpsertBugAnalytics(ctx, nameOnly))

	withRef := &summary.BugAnalyticsDaily{
		ProjectID:   uintPtr(42),
		ProjectName: "Vega",
		Day:         d,
		BugsCreated: 1,
		OpenBugs:    2,
	}
	require.NoError(t, s.UpsertBugAnalytics(ctx, withRef))

	// Lookup under either key resolves to the same single row.
	byName, err := s.GetBugAnalytics(ctx, nil, "Vega", d)
	require.NoError(t, err)

	byID, err := s.GetBugAnalytics(ctx, uintPtr(42), "", d)
	require.NoError(t, err)

	assert.Equal(t, nameOnly.ID, byName.ID)
	assert.Equal(t, nameOnly.ID, byID.ID)
	require.NotNil(t, byName.ProjectID)
	assert.Equal(t, uint(42), *byName.ProjectID)
	assert.Equal(t, 2, byName.OpenBugs)

	// And writing again by reference keeps converging.
	require.NoError(t, s.UpsertBugAnalytics(ctx, &summary.BugAnalyticsDaily{
		ProjectID:   uintPtr(42),
		ProjectName: "Vega",
		Day:         d,
		OpenBugs:    1,
	}))

	final, err := s.GetBugAnalytics(ctx, uintPtr(42), "Vega", d)
	require.NoError(t, err)
	assert.Equal(t, nameOnly.ID, final.ID)
	assert.Equal(t, 1, final.OpenBugs)
}

func TestUpsertBugAnalytics_DistinctSubjectsKeepDistinctRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 5)

	a := &summary.BugAnalyticsDaily{ProjectID: uintPtr(1), ProjectName: "A", Day: d}
	b := &summary.BugAnalyticsDaily{ProjectID: uintPtr(2), ProjectName: "B", Day: d}
	c := &summary.BugAnalyticsDaily{ProjectName: "C", Day: d}

	require.NoError(t, s.UpsertBugAnalytics(ctx, a))
	require.NoError(t, s.UpsertBugAnalytics(ctx, b))
	require.NoError(t, s.UpsertBugAnalytics(ctx, c))

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, b.ID, c.ID)
}

func TestUpsertTestCaseAnalytics(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := day(2026, 6, 6)

	row := &summary.TestCaseAnalytics{
		ProjectID:      3,
		RepositoryID:   9,
		Day:            d,
		TotalCases:     20,
		AutomatedCases: 15,
		ManualCases:    5,
	}
	require.NoError(t, s.UpsertTestCaseAnalytics(ctx, row))

	require.NoError(t, s.UpsertTestCaseAnalytics(ctx, &summary.TestCaseAnalytics{
		ProjectID:      3,
		RepositoryID:   9,
		Day:            d,
		TotalCases:     21,
		AutomatedCases: 16,
		ManualCases:    5,
	}))

	got, err := s.GetTestCaseAnalytics(ctx, 3, 9, d)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, 21, got.TotalCases)

	// Different repository in the same project is a different row.
	require.NoError(t, s.UpsertTestCaseAnalytics(ctx, &summary.TestCaseAnalytics{
		ProjectID:    3,
		RepositoryID: 10,
		Day:          d,
		TotalCases:   2,
	}))

	other, err := s.GetTestCaseAnalytics(ctx, 3, 10, d)
	require.NoError(t, err)
	assert.NotEqual(t, got.ID, other.ID)
	assert.Equal(t, 2, other.TotalCases)
}
