package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/auth"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/batch"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/importer"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/loads"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/report"
	"github.com/devalgupta404/IntegrityInspect/internal/config"
	"github.com/devalgupta404/IntegrityInspect/internal/jobs"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/metrics"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
	"github.com/devalgupta404/IntegrityInspect/internal/notify"
	"github.com/devalgupta404/IntegrityInspect/internal/profile"
	"github.com/devalgupta404/IntegrityInspect/internal/publish"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// App holds the wired dependencies the routes need.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Engine       *assessment.Engine
	Availability loads.Availability
	Users        repo.Repository
	Store        repo.AssessmentStore
	Pool         *jobs.Pool
}

func HandleList(r *mux.Router, app *App) {
	authEnv := &auth.Authenv{
		JWTkey: []byte(app.Config.Auth.TokenKey),
		Repo:   app.Users,
		Log:    app.Log,
		Secure: app.Config.TLSEnabled(),
	}
	limiter := auth.NewIPRateLimiter(rate.Limit(app.Config.Auth.RateLimit), app.Config.Auth.RateBurst)

	r.HandleFunc("/health", app.health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/login", limiter.LimitMiddleware(http.HandlerFunc(authEnv.AuthHandler))).Methods("POST")
	api.Handle("/register", limiter.LimitMiddleware(http.HandlerFunc(authEnv.RegisterHandler))).Methods("POST")

	secureApi := api.PathPrefix("/user").Subrouter()
	secureApi.Use(authEnv.AuthMiddleware)

	analyzeH := &assessment.Handler{Engine: app.Engine, Log: app.Log, Metrics: app.Metrics}
	jobsH := &jobs.Handler{Pool: app.Pool, Store: app.Store, Log: app.Log}
	reportH := &report.Handler{Records: jobsH, Log: app.Log}
	importH := &importer.Handler{Engine: app.Engine, Log: app.Log}
	batchH := &batch.Handler{Engine: app.Engine, Log: app.Log}
	profileH := &profile.ProfileHandler{Store: app.Store, Log: app.Log}

	secureApi.HandleFunc("/profile", profileH.GetProfile).Methods("GET")
	secureApi.HandleFunc("/simulation/analyze", analyzeH.Analyze).Methods("POST")
	secureApi.HandleFunc("/assessments/submit", jobsH.Submit).Methods("POST")
	secureApi.HandleFunc("/assessments/status/{id}", jobsH.Status).Methods("GET")
	secureApi.HandleFunc("/assessments/{id}/report.pdf", reportH.Generate).Methods("GET")
	secureApi.HandleFunc("/assessments/import", importH.Import).Methods("POST")
	secureApi.HandleFunc("/assessments/batch", batchH.Assess).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierr.NotFound(w, r, "Route not found")
	})
}

// Handler wraps the router with the request middleware chain.
func Handler(r *mux.Router, log *logger.Logger) http.Handler {
	return middleware.CORS(middleware.RequestID(middleware.Logger(log)(middleware.Recovery(log)(r))))
}

func (app *App) health(w http.ResponseWriter, _ *http.Request) {
	apierr.JSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"analysis_type": app.Availability.Fidelity,
		"solver":        app.Availability.Reason,
	})
}

// build wires every dependency from cfg. The returned cleanup releases them in
// reverse order.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*App, func(context.Context), error) {
	var closers []func(context.Context)
	cleanup := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}

	clock := clockwork.NewRealClock()
	catalog := material.NewCatalog(material.WithFallback(cfg.Engine.MaterialFallback))
	estimator, avail := loads.Select(ctx, cfg.Engine.SolverURL, cfg.Engine.SolverTimeout, loads.WithObserver(m.SolverObserver()))
	if avail.Fidelity == loads.HighFidelity {
		m.HighFidelity.Set(1)
	}
	log.Info("Load estimator selected", map[string]interface{}{
		"analysis_type":     avail.Fidelity,
		"reason":            avail.Reason,
		"material_fallback": cfg.Engine.MaterialFallback,
	})
	engine := assessment.NewEngine(catalog, estimator, assessment.WithClock(clock))

	app := &App{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		Engine:       engine,
		Availability: avail,
	}

	if cfg.Database.URL != "" {
		db, err := repo.OpenDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func(context.Context) { db.Close() })
		if err := repo.Migrate(ctx, db); err != nil {
			return nil, cleanup, err
		}
		app.Users = repo.NewPostgresUserDB(db)
		app.Store = repo.NewPostgresAssessmentRepository(db, clock)
	} else {
		log.Warn("DATABASE_URL not set, keeping users and assessments in memory", nil)
		mem := repo.NewMemoryAssessmentStore(cfg.Jobs.ResultTTL, clock)
		closers = append(closers, func(context.Context) { mem.Close() })
		app.Users = repo.NewMemoryUserRepository()
		app.Store = mem
	}

	publisher := publish.New(cfg.Kafka)
	closers = append(closers, func(context.Context) {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to close publisher", err, nil)
		}
	})

	app.Pool = jobs.New(engine, app.Store,
		jobs.WithWorkers(cfg.Jobs.Workers),
		jobs.WithQueueSize(cfg.Jobs.QueueSize),
		jobs.WithPublisher(publisher),
		jobs.WithNotifier(notify.New(cfg.Telegram)),
		jobs.WithMetrics(m),
		jobs.WithLogger(log),
	)
	// Workers outlive the signal context so Stop can drain the queue.
	app.Pool.Start(context.Background())
	closers = append(closers, func(ctx context.Context) {
		if err := app.Pool.Stop(ctx); err != nil {
			log.Error("Job pool did not drain", err, nil)
		}
	})

	return app, cleanup, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.New("production", "").Fatal("Invalid configuration", err, nil)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	app, cleanup, err := build(ctx, cfg, log, metrics.NewMetrics())
	if err != nil {
		cleanup(context.Background())
		log.Fatal("Startup failed", err, nil)
	}

	router := mux.NewRouter()
	HandleList(router, app)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: Handler(router, log),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", map[string]interface{}{"port": cfg.Server.Port, "tls": cfg.TLSEnabled(), "env": cfg.Server.Env})
		if cfg.TLSEnabled() {
			serverErr <- server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			serverErr <- server.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", err, nil)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", err, nil)
	}
	cleanup(shutdownCtx)
	log.Info("Server stopped", nil)
}
