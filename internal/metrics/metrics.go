package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skillassess"

// Metrics holds Prometheus metrics for the engine and its HTTP surface.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TemplatesCreated   prometheus.Counter
	GenerationFailures *prometheus.CounterVec
	SessionsOpened     *prometheus.CounterVec
	AnswersRecorded    *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	SweepRuns          prometheus.Counter
	SweptSessions      prometheus.Counter

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	DBConnPoolStats  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TemplatesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "registry", Name: "templates_created_total",
			Help: "Templates issued with a new access code",
		}),
		GenerationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "registry", Name: "generation_failures_total",
			Help: "Question generation failures by kind",
		}, []string{"kind"}), // kind: generation, unavailable
		SessionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "opened_total",
			Help: "Sessions returned by OpenSession",
		}, []string{"outcome"}), // outcome: new, reused
		AnswersRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "answers_total",
			Help: "Answer writes by outcome",
		}, []string{"outcome"}), // outcome: accepted, ignored, rejected
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "submissions_total",
			Help: "Graded submissions by result status and trigger",
		}, []string{"status", "trigger"}), // trigger: candidate, deadline
		SweepRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sweeper", Name: "runs_total",
			Help: "Deadline sweeps executed",
		}),
		SweptSessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sweeper", Name: "forced_total",
			Help: "Sessions force-submitted by the sweeper",
		}),
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of requests",
		}, []string{"route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "Number of requests currently being processed",
		}),
		DBConnPoolStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "connection_pool",
			Help: "Database connection pool statistics",
		}, []string{"stat"}),
		gatherer: reg,
	}
}

func (m *Metrics) TemplateCreated() {
	if m == nil {
		return
	}
	m.TemplatesCreated.Inc()
}

func (m *Metrics) GenerationFailed(kind string) {
	if m == nil {
		return
	}
	m.GenerationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionOpened(reused bool) {
	if m == nil {
		return
	}
	outcome := "new"
	if reused {
		outcome = "reused"
	}
	m.SessionsOpened.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AnswerRecorded(outcome string) {
	if m == nil {
		return
	}
	m.AnswersRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Submitted(status string, forced bool) {
	if m == nil {
		return
	}
	trigger := "candidate"
	if forced {
		trigger = "deadline"
	}
	m.Submissions.WithLabelValues(status, trigger).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
	m.SweptSessions.Add(float64(n))
}

// RecordDBPoolStats records database connection pool statistics
func (m *Metrics) RecordDBPoolStats(st sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(st.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(st.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(st.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(st.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(st.WaitDuration.Milliseconds()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records per-route request counts and durations. Routes are
// labelled by chi pattern so ids in paths do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
