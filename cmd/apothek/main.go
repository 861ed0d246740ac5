package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/cmd/apothek/cli"
	"github.com/apothek-io/apothek/internal/app"
	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/auth"
	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/branches"
	"github.com/apothek-io/apothek/internal/customers"
	"github.com/apothek-io/apothek/internal/drugs"
	"github.com/apothek-io/apothek/internal/observability"
	"github.com/apothek-io/apothek/internal/pharmacies"
	"github.com/apothek-io/apothek/internal/platform/cache"
	"github.com/apothek-io/apothek/internal/platform/db"
	"github.com/apothek-io/apothek/internal/reports"
	"github.com/apothek-io/apothek/internal/sales"
	"github.com/apothek-io/apothek/internal/users"
	"github.com/apothek-io/apothek/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Subcommands run against the live configuration and exit.
	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, pool, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	revocation := auth.NewRevocationStore(redisClient)
	issuer := auth.NewIssuer(cfg.TokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, revocation)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, issuer)
	authHandler := auth.NewHandler(logger, authService)
	authenticator := auth.Authenticator{Issuer: issuer}

	auditLogger := audit.WithLogging(audit.NewLogger(pool), logger)
	auditRepo := audit.NewRepository(pool)

	guards := authz.Middleware{Rules: authz.Default(), Logger: logger, Metrics: metrics}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger, authz.Default())
	usersHandler := users.NewHandler(logger, usersService, guards)

	pharmaciesRepo := pharmacies.NewRepository(pool)
	pharmaciesService := pharmacies.NewService(pharmaciesRepo, auditLogger)
	pharmaciesHandler := pharmacies.NewHandler(logger, pharmaciesService, guards)

	branchesRepo := branches.NewRepository(pool)
	branchesService := branches.NewService(branchesRepo, auditLogger)
	branchesHandler := branches.NewHandler(logger, branchesService, guards)

	drugsRepo := drugs.NewRepository(pool)
	drugsService := drugs.NewService(drugsRepo, auditLogger)
	drugsHandler := drugs.NewHandler(logger, drugsService, guards)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, drugsRepo, auditLogger)
	salesHandler := sales.NewHandler(logger, salesService, guards)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo, auditLogger)
	customersHandler := customers.NewHandler(logger, customersService, guards)

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache)
	reportsHandler := reports.NewHandler(logger, reportsService, guards)

	auditHandler := audit.NewHandler(logger, auditRepo, guards)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger, guards)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Authenticator:     authenticator,
		AuthHandler:       authHandler,
		UsersHandler:      usersHandler,
		PharmaciesHandler: pharmaciesHandler,
		BranchesHandler:   branchesHandler,
		DrugsHandler:      drugsHandler,
		SalesHandler:      salesHandler,
		CustomersHandler:  customersHandler,
		ReportsHandler:    reportsHandler,
		AuditHandler:      auditHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runCommand(ctx context.Context, cfg *app.Config, pool *pgxpool.Pool, args []string) error {
	switch args[0] {
	case "seed":
		email := os.Getenv("SEED_ADMIN_EMAIL")
		password := os.Getenv("SEED_ADMIN_PASSWORD")
		return cli.SeedSuperAdmin(ctx, pool, email, password)
	case "jobs:trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: apothek jobs:trigger <task>")
		}
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = jobsCLI.Close() }()
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "jobs:stats":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = jobsCLI.Close() }()
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
