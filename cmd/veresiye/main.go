package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/veresiye/defter/cmd/veresiye/cli"
	"github.com/veresiye/defter/internal/app"
	"github.com/veresiye/defter/internal/auth"
	"github.com/veresiye/defter/internal/contact"
	"github.com/veresiye/defter/internal/gallery"
	"github.com/veresiye/defter/internal/ledger"
	"github.com/veresiye/defter/internal/observability"
	"github.com/veresiye/defter/internal/platform/cache"
	"github.com/veresiye/defter/internal/platform/db"
	"github.com/veresiye/defter/internal/shared"
	"github.com/veresiye/defter/jobs"
)

const usage = `usage: veresiye <command> [flags]

commands:
  serve                       run the HTTP API (default)
  migrate                     apply the database schema
  create-admin -username ...  create a staff account
  jobs trigger <name>         enqueue overdue-scan or idempotency-cleanup
  jobs stats                  print default queue statistics
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Fprint(os.Stdout, usage)
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	switch cmd {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "create-admin":
		err = createAdmin(ctx, cfg, args)
	case "jobs":
		err = runJobs(ctx, cfg, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, ledger cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(auth.NewRepository(pool), tokens)
	authMiddleware := auth.NewMiddleware(authService, logger)
	authHandler := auth.NewHandler(logger, authService)

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	totalsCache := ledger.NewTotalsCache(redisClient, cfg.LedgerCacheTTL, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), totalsCache, auditLogger, idempotencyStore, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	contactService := contact.NewService(contact.NewRepository(pool), jobClient)
	contactHandler := contact.NewHandler(logger, contactService, authMiddleware.RequireAdmin)

	storage, err := gallery.NewLocalStorage(cfg.MediaDir, cfg.MediaURLPrefix, cfg.UploadMaxBytes)
	if err != nil {
		return err
	}
	galleryService := gallery.NewService(gallery.NewRepository(pool), storage)
	galleryHandler := gallery.NewHandler(logger, galleryService, authMiddleware, cfg.UploadMaxBytes)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthMiddleware: authMiddleware,
		AuthHandler:    authHandler,
		LedgerHandler:  ledgerHandler,
		GalleryHandler: galleryHandler,
		ContactHandler: contactHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func createAdmin(ctx context.Context, cfg *app.Config, args []string) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return err
	}
	service := auth.NewService(auth.NewRepository(pool), tokens)
	return cli.CreateAdmin(ctx, service, args, os.Stdout, os.Getenv)
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts, logger)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()
	return cli.Jobs(ctx, client, inspector, args, os.Stdout)
}
