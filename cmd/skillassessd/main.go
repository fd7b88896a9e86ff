package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	api "github.com/mind-engage/skillassess/internal/api/http"
	"github.com/mind-engage/skillassess/internal/auth"
	"github.com/mind-engage/skillassess/internal/config"
	"github.com/mind-engage/skillassess/internal/db"
	"github.com/mind-engage/skillassess/internal/exam"
	"github.com/mind-engage/skillassess/internal/generator"
	"github.com/mind-engage/skillassess/internal/grading"
	"github.com/mind-engage/skillassess/internal/ledger"
	"github.com/mind-engage/skillassess/internal/logger"
	"github.com/mind-engage/skillassess/internal/metrics"
	"github.com/mind-engage/skillassess/internal/rbac"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg := config.FromEnv()
	lg := logger.New("skillassessd", cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log := lg.Service()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.WithError(envErr).Warn(".env not loaded")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Storage ---
	var (
		store exam.Store
		led   ledger.Ledger
		dbh   *sql.DB
	)
	if db.Driver(cfg.DBDriver) == db.DriverMemory {
		store, led = exam.NewInMemoryStore(), ledger.NewInMemory()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		dbh, err = db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("db open failed")
		}
		defer dbh.Close()
		store, led = exam.NewSQLStore(dbh, cfg.DBDriver), ledger.NewSQLLedger(dbh)
	}

	// --- Question generator ---
	var gen exam.Generator = generator.NewPool()
	if cfg.GeneratorURL != "" {
		gen = generator.NewHTTP(generator.HTTPConfig{
			URL:          cfg.GeneratorURL,
			TokenURL:     cfg.GeneratorTokenURL,
			ClientID:     cfg.GeneratorClientID,
			ClientSecret: cfg.GeneratorClientSecret,
			Timeout:      cfg.GeneratorTimeout,
		})
	}

	reuse, err := exam.ParseReusePolicy(cfg.SessionReuse)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	engine := exam.NewEngine(store, led, gen,
		exam.WithGrader(grading.NewGrader(grading.WithPassThreshold(cfg.PassThreshold))),
		exam.WithReusePolicy(reuse),
		exam.WithStrictLateWrites(cfg.StrictLateWrites),
		exam.WithCodeLength(cfg.CodeLength),
		exam.WithGenerateTimeout(cfg.GeneratorTimeout),
		exam.WithLogger(log),
		exam.WithMetrics(m),
	)

	// --- Deadline sweeper ---
	var extra []func()
	if dbh != nil {
		extra = append(extra, func() { m.RecordDBPoolStats(dbh.Stats()) })
	}
	sweeper, err := exam.NewSweeper(engine, cfg.SweepSchedule, time.Minute, extra...)
	if err != nil {
		log.WithError(err).Fatal("sweeper")
	}
	sweeper.Start()

	// --- Router ---
	deps := api.Deps{
		Engine:      engine,
		Logger:      lg,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins(),
	}
	if dbh != nil {
		deps.Ready = dbh.PingContext
	}
	if cfg.EnableIssuerAuth {
		deps.Auth = auth.NewAuthService(cfg.AuthHMACSecret).WithTTL(cfg.AuthTokenTTL)
		deps.Accounts = []auth.Account{{User: cfg.AdminUser, PassHash: cfg.AdminPassHash, Role: rbac.RoleAdmin}}
		if cfg.IssuerUser != "" {
			deps.Accounts = append(deps.Accounts, auth.Account{User: cfg.IssuerUser, PassHash: cfg.IssuerPassHash, Role: rbac.RoleIssuer})
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.HTTPAddr).
			WithField("mode", cfg.Mode).
			WithField("db", cfg.DBDriver).
			WithField("reuse", reuse).
			Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sweeper.Stop(shutdownCtx)
}
