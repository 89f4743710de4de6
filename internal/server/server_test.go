package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	require.NoError(t, st.Write(context.Background(), []model.Lead{
		{BusinessName: "Alpha", City: "Austin", Country: "USA", PlaceID: "A", Status: model.StatusNotContacted, QualityScore: model.Float(80), CreatedAt: "2026-03-04T04:06:07Z"},
		{BusinessName: "Bravo", City: "Dallas", Country: "USA", PlaceID: "B", Status: model.StatusNotContacted, QualityScore: model.Float(55), CreatedAt: "2026-03-04T04:06:07Z"},
	}))
	return st
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	h := New(context.Background(), newTestStore(t), nil, nil, nil).Handler()
	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListLeads(t *testing.T) {
	st := newTestStore(t)
	h := New(context.Background(), st, st, nil, nil).Handler()

	rec, body := do(t, h, http.MethodGet, "/api/leads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	leads := body["leads"].([]any)
	assert.Equal(t, "A", leads[0].(map[string]any)["place_id"], "highest score first")

	_, body = do(t, h, http.MethodGet, "/api/leads?min_score=60", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = do(t, h, http.MethodGet, "/api/leads?status=Contacted", "")
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["leads"])

	_, body = do(t, h, http.MethodGet, "/api/leads?limit=1&offset=1", "")
	assert.EqualValues(t, 1, body["count"])
}

func TestListLeads_BadParams(t *testing.T) {
	st := newTestStore(t)
	h := New(context.Background(), st, st, nil, nil).Handler()

	for _, path := range []string{
		"/api/leads?min_score=high",
		"/api/leads?limit=-1",
		"/api/leads?offset=x",
		"/api/leads?status=Maybe",
	} {
		rec, _ := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetLead(t *testing.T) {
	st := newTestStore(t)
	h := New(context.Background(), st, st, nil, nil).Handler()

	rec, body := do(t, h, http.MethodGet, "/api/leads/A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alpha", body["business_name"])

	rec, body = do(t, h, http.MethodGet, "/api/leads/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lead not found", body["error"])
}

func TestUpdateLeadStatus(t *testing.T) {
	st := newTestStore(t)
	h := New(context.Background(), st, st, nil, nil).Handler()

	rec, body := do(t, h, http.MethodPatch, "/api/leads/A/status", `{"status":"Contacted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusContacted, body["status"])
	assert.NotEmpty(t, body["last_contacted_at"])

	rec, _ = do(t, h, http.MethodPatch, "/api/leads/A/status", `{"status":"Sold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPatch, "/api/leads/A/status", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPatch, "/api/leads/missing/status", `{"status":"Replied"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_StartAndConflict(t *testing.T) {
	st := newTestStore(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var calls atomic.Int32

	start := func(ctx context.Context, onState func(model.RunState)) (*pipeline.Result, error) {
		if calls.Add(1) > 1 {
			return &pipeline.Result{Summary: model.RunSummary{ID: "run-2", State: model.RunStateDone}}, nil
		}
		onState(model.RunStateSearching)
		close(started)
		<-release
		summary := model.RunSummary{ID: "run-1", State: model.RunStateDone, Counters: model.RunCounters{Accepted: 3}}
		assert.NoError(t, st.RecordRun(ctx, &summary))
		return &pipeline.Result{Summary: summary}, nil
	}

	srv := New(context.Background(), st, st, start, []string{"http://dash.test"})
	h := srv.Handler()

	rec, body := do(t, h, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", body["status"])
	<-started

	rec, body = do(t, h, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "a run is already in progress", body["error"])

	_, body = do(t, h, http.MethodGet, "/api/runs", "")
	status := body["status"].(map[string]any)
	assert.Equal(t, true, status["running"])
	assert.Equal(t, string(model.RunStateSearching), status["state"])

	close(release)
	srv.Wait()

	s := srv.Status()
	assert.False(t, s.Running)
	require.NotNil(t, s.Last)
	assert.Equal(t, "run-1", s.Last.ID)
	assert.Equal(t, model.RunStateDone, s.State)

	_, body = do(t, h, http.MethodGet, "/api/runs?limit=5", "")
	runs := body["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].(map[string]any)["id"])

	rec, _ = do(t, h, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, "a new run may start once the last finished")
	srv.Wait()
	assert.Equal(t, "run-2", srv.Status().Last.ID)
}

func TestRuns_FailedRunIsReported(t *testing.T) {
	st := newTestStore(t)
	start := func(_ context.Context, _ func(model.RunState)) (*pipeline.Result, error) {
		return &pipeline.Result{Summary: model.RunSummary{ID: "bad", State: model.RunStateAborted}}, errors.New("invalid configuration")
	}
	srv := New(context.Background(), st, st, start, nil)

	rec, _ := do(t, srv.Handler(), http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	srv.Wait()

	s := srv.Status()
	assert.False(t, s.Running)
	assert.Equal(t, model.RunStateAborted, s.State)
	assert.Equal(t, "invalid configuration", s.LastError)
}

func TestRuns_NoStarter(t *testing.T) {
	st := newTestStore(t)
	rec, _ := do(t, New(context.Background(), st, st, nil, nil).Handler(), http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	st := newTestStore(t)
	h := New(context.Background(), st, st, nil, []string{"http://dash.test"}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "http://dash.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://dash.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIntParam(t *testing.T) {
	t.Parallel()

	n, err := intParam("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = intParam("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = intParam("-3")
	assert.Error(t, err)
}
