//go:build integration

package data

import (
	"context"
	"testing"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fairlens"),
		tcpostgres.WithUsername("fairlens"),
		tcpostgres.WithPassword("fairlens"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(pgc))
	})

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.Equal(t, driverPostgres, s.driver)
	return s
}

func TestPostgresStore_DatasetRoundTrip(t *testing.T) {
	s := setupPostgresStore(t)

	recs := testRecords()
	recs[0].Score = 7.5
	recs[0].HasScore = true

	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	// Re-import under the same name exercises the upsert path.
	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	got, err := s.Records("compas")
	require.NoError(t, err)
	require.Equal(t, recs, got)

	list, err := s.ListDatasets()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "compas", list[0].Name)
}

func TestPostgresStore_Runs(t *testing.T) {
	s := setupPostgresStore(t)

	recs := testRecords()
	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	stats, err := audit.Compute(recs)
	require.NoError(t, err)
	rep, err := audit.Evaluate(stats, "groupX", audit.DefaultPolicy())
	require.NoError(t, err)

	run, err := s.SaveRun("compas", rep)
	require.NoError(t, err)
	assert.Greater(t, run.ID, int64(0))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Violations, got.Violations)
	assert.Equal(t, rep.Passed, got.Passed)
	require.NotNil(t, got.Report)
	assert.Equal(t, "groupX", got.Report.Reference)

	runs, err := s.ListRuns("compas", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestPostgresStore_GroupBreakdown(t *testing.T) {
	s := setupPostgresStore(t)

	recs := testRecords()
	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	want, err := audit.Compute(recs)
	require.NoError(t, err)

	got, err := s.GroupBreakdown("compas")
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for _, g := range got {
		w, ok := want[g.Group]
		require.True(t, ok)
		assert.Equal(t, w.Size, g.Size)
		assert.Equal(t, w.TruePositives, g.TruePositives)
		assert.Equal(t, w.FalsePositives, g.FalsePositives)
		assert.InDelta(t, w.PositiveRate(), g.PositiveRate(), 1e-9)
	}

	require.NoError(t, s.DeleteDataset("compas"))
	_, err = s.GroupBreakdown("compas")
	assert.ErrorIs(t, err, ErrNotFound)
}
