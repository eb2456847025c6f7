package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/memberline/memberline/internal/app"
	"github.com/memberline/memberline/internal/membership"
	"github.com/memberline/memberline/internal/observability"
	"github.com/memberline/memberline/internal/payments"
	"github.com/memberline/memberline/internal/periods"
	"github.com/memberline/memberline/internal/platform/cache"
	"github.com/memberline/memberline/internal/platform/db"
	"github.com/memberline/memberline/internal/settings"
	"github.com/memberline/memberline/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	settingsRepo := settings.NewRepository(pool)
	settingsProvider := settings.NewCache(redisClient, settingsRepo, cfg.SettingsCacheTTL, logger)

	store := periods.NewPGStore(pool)
	paymentsRegistry := payments.NewRegistry(pool)
	calc := periods.NewCalculator(paymentsRegistry, logger)

	membershipRegistry := membership.NewRegistry(pool)
	if err := membershipRegistry.VerifyStatuses(ctx); err != nil {
		logger.Error("verify membership statuses", slog.Any("error", err))
		os.Exit(1)
	}
	membershipService := membership.NewService(membershipRegistry, store, calc, paymentsRegistry, settingsProvider, logger)
	membershipHandler := membership.NewHandler(logger, membershipService)

	paymentAdapter := payments.NewAdapter(paymentsRegistry, membershipRegistry, store, logger)
	paymentsHandler := payments.NewHandler(logger, paymentAdapter)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MembershipHandler: membershipHandler,
		PaymentsHandler:   paymentsHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
