package data

import (
	"testing"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditReport(t *testing.T, recs []audit.Record, reference string) *audit.Report {
	t.Helper()
	stats, err := audit.Compute(recs)
	require.NoError(t, err)
	rep, err := audit.Evaluate(stats, reference, audit.DefaultPolicy())
	require.NoError(t, err)
	return rep
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s := setupTestStore(t)

	recs := testRecords()
	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	rep := auditReport(t, recs, "groupX")
	run, err := s.SaveRun("compas", rep)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Greater(t, run.ID, int64(0))
	assert.Equal(t, "compas", run.Dataset)
	assert.Equal(t, "groupX", run.Reference)
	assert.Equal(t, rep.Violations, run.Violations)
	assert.Equal(t, rep.Passed, run.Passed)
	assert.NotEmpty(t, run.RanAt)

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.RanAt, got.RanAt)
	require.NotNil(t, got.Report)
	assert.Equal(t, rep.Reference, got.Report.Reference)
	assert.Equal(t, rep.Violations, got.Report.Violations)
	require.Len(t, got.Report.Findings, len(rep.Findings))
	assert.Equal(t, rep.Findings[0].Group, got.Report.Findings[0].Group)
	assert.InDelta(t, rep.Findings[0].PositiveRate, got.Report.Findings[0].PositiveRate, 1e-9)
}

func TestSaveRun_Validation(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.SaveRun("", auditReport(t, testRecords(), "groupX"))
	assert.Error(t, err)

	_, err = s.SaveRun("compas", nil)
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)

	recs := testRecords()
	require.NoError(t, s.SaveDataset(testDataset("compas"), recs))

	repX := auditReport(t, recs, "groupX")
	repY := auditReport(t, recs, "groupY")

	first, err := s.SaveRun("compas", repX)
	require.NoError(t, err)
	second, err := s.SaveRun("compas", repY)
	require.NoError(t, err)

	runs, err := s.ListRuns("compas", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, "groupY", runs[0].Reference)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Nil(t, runs[0].Report)

	limited, err := s.ListRuns("compas", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestListRuns_EmptyDataset(t *testing.T) {
	s := setupTestStore(t)

	runs, err := s.ListRuns("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun(42)
	assert.ErrorIs(t, err, ErrNotFound)
}
