package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/aquabill/aquabill-web/internal/app"
	"github.com/aquabill/aquabill-web/internal/dashboard"
	jobmetrics "github.com/aquabill/aquabill-web/internal/jobs"
	"github.com/aquabill/aquabill-web/internal/platform/cache"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	api := upstream.NewClient(cfg.BillingAPIURL, cfg.BillingAPITimeout)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(api, dashboardCache)

	refreshJob := &jobs.DashboardRefreshJob{
		Service: dashboardService,
		Logger:  logger,
		Metrics: jobmetrics.NewMetrics(nil),
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardRefresh, Handler: refreshJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{
				Spec:    fmt.Sprintf("@every %s", cfg.DashboardRefreshEvery),
				Task:    jobs.NewDashboardRefreshTask(),
				Options: []asynq.Option{asynq.MaxRetry(3)},
			},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
