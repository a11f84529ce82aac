package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testforge/rollup/pkg/aggregate"
	"github.com/testforge/rollup/pkg/source"
)

func TestTestCaseAggregate_Snapshot(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	old := day.AddDate(0, 0, -30)
	future := day.AddDate(0, 0, 1)

	cases := []source.TestCase{
		{
			ProjectID: 1, RepositoryID: 5, Title: "login happy path",
			Priority: source.PriorityHigh, Automated: true, Regression: true,
			CreatedAt: at(old, 9, 0), UpdatedAt: at(old, 9, 0),
		},
		{
			ProjectID: 1, RepositoryID: 5, Title: "login bad password",
			// Capitalized: merged into the high bucket here, unlike
			// the bug analytics literal match.
			Priority: "Critical", Automated: true,
			CreatedAt: at(old, 9, 5), UpdatedAt: at(old, 9, 5),
		},
		{
			ProjectID: 1, RepositoryID: 5, Title: "password reset email",
			Priority: source.PriorityMedium,
			CreatedAt: at(day, 11, 0), UpdatedAt: at(day, 11, 0),
		},
		{
			ProjectID: 1, RepositoryID: 5, Title: "unprioritized check",
			Priority:  "someday",
			CreatedAt: at(old, 10, 0), UpdatedAt: at(old, 10, 0),
		},
		{
			// Created after the day ends: outside the snapshot.
			ProjectID: 1, RepositoryID: 5, Title: "new feature draft",
			Priority:  source.PriorityLow,
			CreatedAt: at(future, 9, 0), UpdatedAt: at(future, 9, 0),
		},
		{
			// Different repository.
			ProjectID: 1, RepositoryID: 6, Title: "api smoke",
			Priority:  source.PriorityLow,
			CreatedAt: at(old, 9, 0), UpdatedAt: at(old, 9, 0),
		},
	}
	for i := range cases {
		require.NoError(t, e.db.Create(&cases[i]).Error)
	}

	// Soft-deleted case: never counted.
	deleted := source.TestCase{
		ProjectID: 1, RepositoryID: 5, Title: "obsolete flow",
		Priority:  source.PriorityHigh,
		CreatedAt: at(old, 9, 0), UpdatedAt: at(old, 9, 0),
		DeletedAt: gorm.DeletedAt{Time: at(old, 12, 0), Valid: true},
	}
	require.NoError(t, e.db.Create(&deleted).Error)

	agg := aggregate.NewTestCaseAggregator(testLogger(), e.reader, e.store)
	require.NoError(t, agg.Aggregate(ctx, 1, 5, day))

	got, err := e.store.GetTestCaseAnalytics(ctx, 1, 5, day)
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalCases, "as-of-day snapshot of repo 5")
	assert.Equal(t, 2, got.AutomatedCases)
	assert.Equal(t, 2, got.ManualCases)
	assert.Equal(t, 2, got.HighPriorityCases, "high + Critical merged")
	assert.Equal(t, 1, got.MediumPriorityCases)
	assert.Equal(t, 0, got.LowPriorityCases)
	assert.Equal(t, 1, got.RegressionCases)
}

func TestTestCaseAggregate_Idempotent(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC)

	tc := source.TestCase{
		ProjectID: 2, RepositoryID: 7, Title: "export csv",
		Priority: source.PriorityLow, Automated: true,
		CreatedAt: at(day, 8, 0), UpdatedAt: at(day, 8, 0),
	}
	require.NoError(t, e.db.Create(&tc).Error)

	agg := aggregate.NewTestCaseAggregator(testLogger(), e.reader, e.store)
	require.NoError(t, agg.Aggregate(ctx, 2, 7, day))

	first, err := e.store.GetTestCaseAnalytics(ctx, 2, 7, day)
	require.NoError(t, err)

	require.NoError(t, agg.Aggregate(ctx, 2, 7, day))

	second, err := e.store.GetTestCaseAnalytics(ctx, 2, 7, day)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	first.LastUpdatedAt = second.LastUpdatedAt
	assert.Equal(t, first, second)
}
