package metrics

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TemplateCreated()
		m.GenerationFailed("generation")
		m.SessionOpened(true)
		m.AnswerRecorded("ignored")
		m.Submitted("Pass", false)
		m.Swept(3)
		m.RecordDBPoolStats(sql.DBStats{})
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SessionOpened(false)
	m.SessionOpened(true)
	m.SessionOpened(true)
	m.Submitted("Pass", true)
	m.RecordDBPoolStats(sql.DBStats{OpenConnections: 1, InUse: 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsOpened.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("Pass", "deadline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBConnPoolStats.WithLabelValues("in_use")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("/api/sessions/{sessionID}", "200")))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "skillassess_http_request_duration_seconds")
}
