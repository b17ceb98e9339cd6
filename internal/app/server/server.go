package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payrollsync/internal/domain/ledger"
	"payrollsync/internal/domain/posting"
	"payrollsync/internal/domain/timesheet"
	"payrollsync/internal/platform/config"
	"payrollsync/internal/platform/db"
	postingshandler "payrollsync/internal/transport/http/handlers/postings"
	rateshandler "payrollsync/internal/transport/http/handlers/rates"
	timesheethandler "payrollsync/internal/transport/http/handlers/timesheets"
	"payrollsync/internal/transport/http/middleware"
	"payrollsync/migrations"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrations.Files); err != nil {
			pool.Close()
			return nil, err
		}
	}

	store := timesheet.NewStore(pool)
	ledgerClient := ledger.NewClient(ledger.Options{
		APIBase:      cfg.LedgerAPIBase,
		AccountsBase: cfg.LedgerAccountsBase,
		Companies:    cfg.Companies,
		Retry:        ledger.DefaultRetryPolicy(),
		CallTimeout:  cfg.LedgerCallTimeout,
	})
	postingService := posting.NewService(store, ledgerClient, cfg.Companies, cfg.Cadence)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBody(cfg.MaxBodyBytes))
		timesheethandler.NewHandler(store).RegisterRoutes(r)
		rateshandler.NewHandler(store).RegisterRoutes(r)
		postingshandler.NewHandler(postingService).RegisterRoutes(r)
	})

	return &App{Config: cfg, DB: pool, Router: router}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
