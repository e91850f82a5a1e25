package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetricsHelpers(t *testing.T) {
	m := New()

	m.JobSubmitted("material")
	m.JobProcessed("material", "succeeded", 2*time.Second)
	m.DeliveryAttempt(false)
	m.DeliveryAttempt(true)
	m.RetrievalFallback()
	m.ArtifactsPurged(3)
	m.ArtifactsPurged(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsSubmittedTotal.WithLabelValues("material")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsProcessedTotal.WithLabelValues("material", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalFallbacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ArtifactsPurgedTotal))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobSubmitted("material")
		m.DeliveryAttempt(true)
		m.RetrievalFallback()
		m.GenerationRepair("worksheet")
		m.HTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestServerRoutes(t *testing.T) {
	m := New()
	m.JobSubmitted("worksheet")
	srv := NewServer("0", m, func() any { return map[string]int{"jobs_total": 4} }, zap.NewNop())

	t.Run("Metrics endpoint", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jobs_submitted_total")
	})

	t.Run("Stats endpoint", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"jobs_total":4}`, w.Body.String())
	})
}
