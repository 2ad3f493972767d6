package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/aquabill/aquabill-web/internal/app"
	"github.com/aquabill/aquabill-web/internal/auth"
	"github.com/aquabill/aquabill-web/internal/bills"
	"github.com/aquabill/aquabill-web/internal/customers"
	"github.com/aquabill/aquabill-web/internal/dashboard"
	"github.com/aquabill/aquabill-web/internal/meters"
	"github.com/aquabill/aquabill-web/internal/observability"
	"github.com/aquabill/aquabill-web/internal/payments"
	"github.com/aquabill/aquabill-web/internal/platform/cache"
	"github.com/aquabill/aquabill-web/internal/receipts"
	"github.com/aquabill/aquabill-web/internal/search"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/users"
	"github.com/aquabill/aquabill-web/internal/view"
	"github.com/aquabill/aquabill-web/jobs"
)

// Debounce tuning per surface. Typeaheads react quickly, the global search
// waits out a full pause in typing.
const (
	typeaheadDelay    = 400 * time.Millisecond
	billLookupDelay   = 600 * time.Millisecond
	globalSearchDelay = 1000 * time.Millisecond
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	sessionManager := shared.NewSessionManager(redisClient, "aquabill_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	api := upstream.NewClient(cfg.BillingAPIURL, cfg.BillingAPITimeout).WithObserver(metrics.ObserveUpstream)

	typeaheadCfg := search.Config{Delay: typeaheadDelay, MinQuery: 1}
	lookupCfg := search.Config{Delay: billLookupDelay, MinQuery: 1}
	globalCfg := search.Config{Delay: globalSearchDelay, MinQuery: 1}

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(api, dashboardCache)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authHandler := auth.NewHandler(logger, api, templates, sessionManager, csrfManager)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, api, templates, csrfManager, globalCfg)
	customersHandler := customers.NewHandler(logger, api, templates, csrfManager, typeaheadCfg)
	metersHandler := meters.NewHandler(logger, api, templates, csrfManager, typeaheadCfg)
	billsHandler := bills.NewHandler(logger, api, templates, csrfManager, typeaheadCfg)
	paymentsHandler := payments.NewHandler(logger, api, templates, csrfManager, lookupCfg).
		WithRefresh(func(ctx context.Context) error {
			// Recorded payments shift the paid/unpaid totals; rebuild the
			// cached dashboard right away instead of waiting for the cron.
			_, err := jobsClient.EnqueueDashboardRefresh(ctx)
			return err
		})
	receiptsHandler := receipts.NewHandler(logger, api, templates, csrfManager)
	usersHandler := users.NewHandler(logger, api, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		CustomersHandler: customersHandler,
		MetersHandler:    metersHandler,
		BillsHandler:     billsHandler,
		PaymentsHandler:  paymentsHandler,
		ReceiptsHandler:  receiptsHandler,
		UsersHandler:     usersHandler,
		Metrics:          metrics,
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
