package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/testforge/rollup/pkg/config"
	"github.com/testforge/rollup/pkg/database"
	"github.com/testforge/rollup/pkg/source"
	"github.com/testforge/rollup/pkg/summary"
)

type env struct {
	db     *gorm.DB
	reader source.Reader
	store  summary.Store
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	db, err := database.Open(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close(db) })

	ctx := context.Background()
	require.NoError(t, source.Migrate(ctx, db))

	store := summary.NewStore(log, db)
	require.NoError(t, store.Migrate(ctx))

	return &env{
		db:     db,
		reader: source.NewReader(log, db),
		store:  store,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func uintPtr(v uint) *uint { return &v }

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		hour, minute, 0, 0, day.Location())
}
