package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"complaintsync/internal/reconcile"
)

func TestObserveRun(t *testing.T) {
	m := New()
	s := reconcile.NewSummary("sync")
	s.Add(reconcile.Outcome{ID: "a", Kind: reconcile.Inserted})
	s.Add(reconcile.Outcome{ID: "b", Kind: reconcile.Inserted})
	s.Add(reconcile.Outcome{ID: "c", Kind: reconcile.Failed, Class: reconcile.Fault})
	s.Finish()

	m.ObserveRun(s, StatusOK)
	m.ObserveSkippedRun("sync")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("sync", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("sync", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("sync", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("sync", StatusSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(reconcile.NewSummary("import"), StatusOK)
	m.ObserveSkippedRun("import")
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSkippedRun("sync")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `complaintsync_runs_total{driver="sync",status="skipped"} 1`)
}
