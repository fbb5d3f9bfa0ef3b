// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain/ports/adapter"
	payAdapters "a2z-marketplace/internal/infra/adapters/payment"
	"a2z-marketplace/internal/infra/adapters/storage"
	tele "a2z-marketplace/internal/infra/adapters/telegram"
	"a2z-marketplace/internal/infra/api"
	pg "a2z-marketplace/internal/infra/db/postgres"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/infra/metrics"
	red "a2z-marketplace/internal/infra/redis"
	"a2z-marketplace/internal/infra/sched"
	"a2z-marketplace/internal/infra/worker"
	"a2z-marketplace/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose errors)")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Fatal().Err(err).Msg("exit")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if cfg.Database.Migrate || migrateOnly {
		if err := pg.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if migrateOnly {
			return nil
		}
	}
	go pg.ReportPoolStats(ctx, pool, 30*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	profileRepo := pg.NewProfileRepoCacheDecorator(pg.NewProfileRepo(pool), redisClient, cfg.Redis.TTL)
	paymentRepo := pg.NewPaymentRepo(pool)
	postRepo := pg.NewPostRepo(pool)

	// ---- Adapters ----
	providers := paymentProviders(cfg, logger)
	objects, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	var notifier adapter.Notifier
	if cfg.Telegram.Token != "" {
		n, err := tele.NewAdminNotifier(cfg.Telegram, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		notifier = n
	} else {
		notifier = tele.NewNoopNotifier(logger)
	}

	tasks := worker.NewPool(cfg.Worker.Workers, logger)
	tasks.Start(ctx)
	defer tasks.Stop()

	// ---- Use cases ----
	dev := cfg.Runtime.Dev
	profileUC := usecase.NewProfileUseCase(profileRepo, postRepo, tm, logger, nil)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, profileRepo, providers, logger, nil, dev)
	webhookUC := usecase.NewWebhookUseCase(paymentRepo, profileRepo, tm, providers, notifier, logger, nil, dev)
	resetUC := usecase.NewResetUseCase(profileRepo, postRepo, tm, objects, locker, notifier,
		usecase.ResetOptions{Concurrency: cfg.Cron.Concurrency, BatchSize: cfg.Cron.BatchSize}, logger, nil)
	postUC := usecase.NewPostUseCase(postRepo, profileRepo, tm, objects, cfg.Server.BaseURL, logger, nil)
	analyticsUC := usecase.NewAnalyticsUseCase(postRepo, limiter, tasks, red.AnalyticsKey,
		usecase.AnalyticsOptions{Limit: cfg.Analytics.RateLimit, Window: cfg.Analytics.RateWindow}, logger)
	storageUC := usecase.NewStorageUseCase(objects, cfg.Storage.UploadTTL, logger)
	maintUC := usecase.NewMaintenanceUseCase(profileRepo, paymentRepo, tm, cfg.Payment.StaleAfter, logger, nil)

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, maintUC, locker, logger)
	go func() { _ = expiry.Run(ctx) }()
	sweeper := sched.NewPaymentSweeper(maintUC, locker, cfg.Scheduler.StalePaymentInterval, logger)
	go sweeper.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(api.UseCases{
		Profiles:  profileUC,
		Payments:  paymentUC,
		Webhooks:  webhookUC,
		Reset:     resetUC,
		Posts:     postUC,
		Analytics: analyticsUC,
		Storage:   storageUC,
	}, api.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		JWTIssuer:      cfg.Auth.Issuer,
		JWTAudience:    cfg.Auth.Audience,
		CronSecret:     cfg.Cron.Secret,
		TrustProxy:     cfg.Server.TrustProxy,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// paymentProviders registers every provider with complete credentials.
// Unconfigured ones are skipped so checkout reports them as unavailable.
func paymentProviders(cfg *config.Config, logger *zerolog.Logger) *payAdapters.Registry {
	var list []adapter.PaymentProvider
	if p, err := payAdapters.NewPayFast(cfg.Payment.PayFast, cfg.Server.BaseURL); err == nil {
		list = append(list, p)
	} else {
		logger.Warn().Err(err).Msg("payfast disabled")
	}
	if p, err := payAdapters.NewOzow(cfg.Payment.Ozow); err == nil {
		list = append(list, p)
	} else {
		logger.Warn().Err(err).Msg("ozow disabled")
	}
	if p, err := payAdapters.NewEFT(cfg.Payment.EFT); err == nil {
		list = append(list, p)
	} else {
		logger.Warn().Err(err).Msg("eft disabled")
	}
	return payAdapters.NewRegistry(list...)
}
