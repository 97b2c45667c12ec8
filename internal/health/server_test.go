package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaintsync/internal/metrics"
	"complaintsync/internal/reconcile"
)

func TestMonitor_RecordRun(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, "healthy", m.GetStatus().Status)

	s := reconcile.NewSummary("sync")
	s.Add(reconcile.Outcome{ID: "CALL-1", Kind: reconcile.Inserted})
	m.RecordRun("sync", s, nil)

	st := m.GetStatus()
	assert.Equal(t, "healthy", st.Status)
	require.Contains(t, st.Runs, "sync")
	assert.Equal(t, 1, st.Runs["sync"].Inserted)
	assert.Equal(t, s.RunID, st.Runs["sync"].RunID)

	m.RecordRun("import", nil, errors.New("connect refused"))
	st = m.GetStatus()
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "connect refused", st.Runs["import"].Status)
	assert.Equal(t, []string{"import", "sync"}, m.Drivers())

	var nilMonitor *Monitor
	nilMonitor.RecordRun("sync", s, nil)
}

func TestHandler(t *testing.T) {
	mon := NewMonitor()
	mon.RecordRun("sync", reconcile.NewSummary("sync"), nil)
	met := metrics.New()
	met.ObserveSkippedRun("sync")
	h := Handler(mon, met)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "healthy", st.Status)
	assert.Equal(t, "ok", st.Runs["sync"].Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "complaintsync_runs_total")
}

func TestHandler_NoMetrics(t *testing.T) {
	h := Handler(NewMonitor(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
