//go:build integration

package event

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"timeclock/internal/attendance/models"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("timeclock"),
		tcpostgres.WithUsername("timeclock"),
		tcpostgres.WithPassword("timeclock"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Simple protocol lets the multi-statement schema file run in one Exec.
	poolCfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../../../migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return NewPostgres(pool)
}

func TestPostgresStore_IdentityUniqueness(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	e := &models.AttendanceEvent{
		ID:         "deadbeef",
		SubjectID:  7,
		Direction:  models.DirectionIn,
		DeviceTime: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC),
		SyncTime:   time.Date(2026, 1, 28, 9, 0, 1, 0, time.UTC),
		SyncStatus: models.SyncOnline,
	}
	require.NoError(t, store.Insert(ctx, e))
	assert.ErrorIs(t, store.Insert(ctx, e), ErrDuplicate)

	got, err := store.GetByID(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.SubjectID)
	assert.Equal(t, models.DirectionIn, got.Direction)
}

func TestPostgresStore_PairingQueries(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	in := &models.AttendanceEvent{
		ID: "in-1", SubjectID: 7, Direction: models.DirectionIn,
		DeviceTime: day.Add(9 * time.Hour), SyncTime: day.Add(9 * time.Hour),
		SyncStatus: models.SyncOnline,
	}
	require.NoError(t, store.Insert(ctx, in))

	open, err := store.LatestUnpairedIn(ctx, 7, day.Add(18*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "in-1", open.ID)

	out := &models.AttendanceEvent{
		ID: "out-1", SubjectID: 7, Direction: models.DirectionOut,
		DeviceTime: day.Add(18 * time.Hour), SyncTime: day.Add(18 * time.Hour),
		SyncStatus: models.SyncOnline,
	}
	require.NoError(t, store.Insert(ctx, out))
	require.NoError(t, store.SetPaired(ctx, "in-1", "out-1", 540))

	// The in is linked and stops matching as open.
	linked, err := store.GetByID(ctx, "in-1")
	require.NoError(t, err)
	require.NotNil(t, linked.PairedEventID)
	assert.Equal(t, "out-1", *linked.PairedEventID)

	open, err = store.LatestUnpairedIn(ctx, 7, day.Add(20*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestPostgresStore_RangeAndCounts(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	work := 480
	late := true
	events := []*models.AttendanceEvent{
		{ID: "e1", SubjectID: 1, Direction: models.DirectionIn,
			DeviceTime: day.Add(9 * time.Hour), SyncTime: day.Add(9 * time.Hour),
			SyncStatus: models.SyncOnline, IsLate: &late},
		{ID: "e2", SubjectID: 1, Direction: models.DirectionOut,
			DeviceTime: day.Add(17 * time.Hour), SyncTime: day.Add(17 * time.Hour),
			SyncStatus: models.SyncOnline, WorkMinutes: &work},
		{ID: "e3", SubjectID: 2, Direction: models.DirectionIn,
			DeviceTime: day.Add(10 * time.Hour), SyncTime: day.Add(10 * time.Hour),
			SyncStatus: models.SyncOffline, Flagged: true, FlagReason: models.FlagMissingAuth},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}
	end := day.AddDate(0, 0, 1)

	listed, err := store.ListForRange(ctx, 1, day, end)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "e1", listed[0].ID, "range results are time-ordered")

	checkins, err := store.CountByDirection(ctx, models.DirectionIn, day, end)
	require.NoError(t, err)
	assert.Equal(t, 2, checkins)

	lateCount, err := store.CountLate(ctx, day, end)
	require.NoError(t, err)
	assert.Equal(t, 1, lateCount)

	flaggedCount, err := store.CountFlagged(ctx, day, end)
	require.NoError(t, err)
	assert.Equal(t, 1, flaggedCount)

	minutes, err := store.SumWorkMinutes(ctx, day, end)
	require.NoError(t, err)
	assert.Equal(t, 480, minutes)

	subjects, err := store.DistinctSubjects(ctx, models.DirectionIn, day, end)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, subjects)
}
