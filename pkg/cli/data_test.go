package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *data.Store {
	t.Helper()
	store, err := data.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// handlerRecords builds two equal-size groups: groupX entirely
// mispredicted, groupY entirely correct. Every rate is defined and the
// two differ on each error metric.
func handlerRecords() []audit.Record {
	recs := make([]audit.Record, 0, 12)
	for i := 0; i < 6; i++ {
		recs = append(recs, audit.Record{Group: "groupX", Predicted: i % 2, Actual: (i + 1) % 2})
		recs = append(recs, audit.Record{Group: "groupY", Predicted: i % 2, Actual: i % 2})
	}
	return recs
}

func seedDataset(t *testing.T, store *data.Store, name string) {
	t.Helper()
	ds := &data.Dataset{
		Name:        name,
		Source:      "test.csv",
		GroupAttr:   "group",
		OutcomeAttr: "outcome",
		Predictor:   "column:decision",
	}
	require.NoError(t, store.SaveDataset(ds, handlerRecords()))
}

func TestDatasetsAPIHandler(t *testing.T) {
	store := setupTestStore(t)
	seedDataset(t, store, "compas")

	w := httptest.NewRecorder()
	datasetsAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/datasets", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var list []*data.Dataset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "compas", list[0].Name)
	assert.Equal(t, 12, list[0].Records)
}

func TestBreakdownAPIHandler(t *testing.T) {
	store := setupTestStore(t)
	seedDataset(t, store, "compas")

	w := httptest.NewRecorder()
	breakdownAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/breakdown?name=compas", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got []*GroupSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "groupX", got[0].Group)
	assert.Equal(t, 6, got[0].Size)
	require.NotNil(t, got[0].PositiveRate)
	assert.InDelta(t, 0.5, *got[0].PositiveRate, 1e-9)

	w = httptest.NewRecorder()
	breakdownAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/breakdown", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	breakdownAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/breakdown?name=nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsAPIHandler(t *testing.T) {
	store := setupTestStore(t)
	seedDataset(t, store, "compas")

	recs, err := store.Records("compas")
	require.NoError(t, err)
	stats, err := audit.Compute(recs)
	require.NoError(t, err)
	rep, err := audit.Evaluate(stats, "groupY", audit.DefaultPolicy())
	require.NoError(t, err)
	_, err = store.SaveRun("compas", rep)
	require.NoError(t, err)
	_, err = store.SaveRun("compas", rep)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	runsAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/runs?name=compas", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []*data.Run
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 2)

	w = httptest.NewRecorder()
	runsAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/runs?name=compas&limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 1)

	w = httptest.NewRecorder()
	runsAPIHandler(store)(w, httptest.NewRequest(http.MethodGet, "/data/runs", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditAPIHandler(t *testing.T) {
	store := setupTestStore(t)
	seedDataset(t, store, "compas")

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"name": "compas", "reference": "groupY"}`)
	auditAPIHandler(store)(w, httptest.NewRequest(http.MethodPost, "/data/audit", body))
	require.Equal(t, http.StatusOK, w.Code)

	var run data.Run
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, "compas", run.Dataset)
	assert.Equal(t, "groupY", run.Reference)
	assert.False(t, run.Passed)
	require.NotNil(t, run.Report)
	require.Len(t, run.Report.Findings, 1)
	assert.Equal(t, "groupX", run.Report.Findings[0].Group)

	list, err := store.ListRuns("compas", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// reference defaults to the largest group, first name on ties
	w = httptest.NewRecorder()
	auditAPIHandler(store)(w, httptest.NewRequest(http.MethodPost, "/data/audit", strings.NewReader(`{"name": "compas"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, "groupX", run.Reference)

	w = httptest.NewRecorder()
	auditAPIHandler(store)(w, httptest.NewRequest(http.MethodPost, "/data/audit", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	auditAPIHandler(store)(w, httptest.NewRequest(http.MethodPost, "/data/audit", strings.NewReader(`{"name": "nope"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	auditAPIHandler(store)(w, httptest.NewRequest(http.MethodPost, "/data/audit", strings.NewReader(`{"name": "compas", "reference": "missing"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMakeRouter(t *testing.T) {
	store := setupTestStore(t)
	seedDataset(t, store, "compas")

	srv := httptest.NewServer(makeRouter(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "fairlens")
	assert.Contains(t, string(b), "compas")

	resp2, err := http.Get(srv.URL + "/data/datasets")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestQueryParamInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?limit=5", nil)
	assert.Equal(t, 5, queryParamInt(r, "limit", 20))

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, 20, queryParamInt(r, "limit", 20))

	r = httptest.NewRequest(http.MethodGet, "/x?limit=abc", nil)
	assert.Equal(t, 20, queryParamInt(r, "limit", 20))

	r = httptest.NewRequest(http.MethodGet, "/x?limit=0", nil)
	assert.Equal(t, 20, queryParamInt(r, "limit", 20))
}
