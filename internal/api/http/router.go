package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/auth"
	"github.com/mind-engage/skillassess/internal/exam"
	"github.com/mind-engage/skillassess/internal/logger"
	"github.com/mind-engage/skillassess/internal/metrics"
	"github.com/mind-engage/skillassess/internal/rbac"
)

type Deps struct {
	Engine  *exam.Engine
	Logger  *logger.Logger
	Metrics *metrics.Metrics // nil disables /metrics and request metrics

	CORSOrigins []string

	// When Auth is set, issuer routes require a bearer token with the
	// matching permission and /api/auth/login is mounted for Accounts.
	Auth     *auth.AuthService
	Accounts []auth.Account

	// Ready is called by /readyz; nil means always ready.
	Ready func(ctx context.Context) error

	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	log := logrus.FieldLogger(logger.Discard())
	if d.Logger != nil {
		log = d.Logger.Service()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.Logger != nil {
		r.Use(d.Logger.Middleware)
	}
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	issuer := func(perm string) func(http.Handler) http.Handler {
		if d.Auth == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return func(next http.Handler) http.Handler {
			return auth.JWTMiddleware(d.Auth)(rbac.Require(perm)(next))
		}
	}

	e := d.Engine
	r.Route("/api", func(ar chi.Router) {
		if d.Auth != nil {
			ar.Post("/auth/login", auth.LoginHandler(d.Auth, d.Accounts...))
		}

		// Issuer
		ar.With(issuer(rbac.PermTestCreate)).Post("/create-test", CreateTestHandler(e, log))
		ar.With(issuer(rbac.PermSubmissionsList)).Get("/admin/submissions", SubmissionsHandler(e, log))

		// Candidate: the access code is the credential
		ar.Get("/test/{code}", GetTestHandler(e, log))
		ar.Post("/submit-test", SubmitTestHandler(e, log))
		ar.Post("/test/{code}/sessions", OpenSessionHandler(e, log))
		ar.Get("/sessions/{sessionID}", GetSessionHandler(e, log))
		ar.Post("/sessions/{sessionID}/answers", RecordAnswersHandler(e, log))
		ar.Post("/sessions/{sessionID}/submit", SubmitSessionHandler(e, log))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				log.WithError(err).Warn("readiness check failed")
				w.Header().Set("Retry-After", "5")
				respondError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	return r
}
