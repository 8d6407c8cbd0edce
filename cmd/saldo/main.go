package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/app"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/core"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/monthly"
	"saldo/internal/offline"
	"saldo/internal/share"
	"saldo/internal/spending"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("saldo stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	startup := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.Logger)

	remote, err := factory.CreateBackend(startup, backendCfg)
	if err != nil {
		return err
	}
	if remote.Cleanup != nil {
		defer closeWith(logger, "remote store", remote.Cleanup)
	}

	offlineStore, err := factory.CreateOffline(backendCfg)
	if err != nil {
		return err
	}
	if offlineStore.Cleanup != nil {
		defer closeWith(logger, "offline cache", offlineStore.Cleanup)
	}

	catalog := core.DefaultCatalog()
	if cfg.Categories != "" {
		catalog = core.ParseCatalog(cfg.Categories)
	}

	deps := monthly.Deps{
		Identity: monthly.ContextIdentity,
		Remote:   remote.Store,
		Cache:    offline.New(offlineStore.Store, logger.WithComponent(log.ComponentOffline).Slog()),
		Items:    spending.NewStore(catalog),
		Timeout:  cfg.RemoteTimeout,
		Logger:   logger.WithComponent(log.ComponentMonthly).Slog(),
	}

	if cfg.AMQPURL != "" {
		notifier, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(log.ComponentAMQP).Slog())
		if err != nil {
			// synced-month events are best effort; the app works without them
			logger.Warn("AMQP unavailable, month-synced events disabled", log.FieldError, err)
		} else {
			defer closeWith(logger, "AMQP client", notifier.Close)
			deps.Notifier = notifier
		}
	}

	shareOpts := []share.Option{share.WithTTL(cfg.ShareTTL)}
	if cfg.ShareCacheSize > 0 {
		shareOpts = append(shareOpts, share.WithCache(cfg.ShareCacheSize, cfg.ShareCacheTTL))
	}
	shares := share.NewService(remote.Store, logger.WithComponent(log.ComponentShare).Slog(), shareOpts...)

	ws, err := app.New(deps, shares, app.WithMainLabel(cfg.MainTabLabel))
	if err != nil {
		return err
	}

	sweeper := worker.NewSweeper(shares, worker.SweeperConfig{Interval: cfg.ShareSweepInterval}, logger.Logger)

	srv := apphttp.NewServer(":"+cfg.Port, ws, apphttp.Options{
		UserHeader:  cfg.UserHeader,
		PublicRPS:   cfg.PublicRateLimitRPS,
		PublicBurst: cfg.PublicRateLimitBurst,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Share sweeper shutdown error", log.FieldError, err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	logger.Info("Starting saldo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"offline_cache", offlineLocation(cfg.OfflineCacheDir),
		"amqp", deps.Notifier != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}

func offlineLocation(dir string) string {
	if dir == "" {
		return "memory"
	}
	return dir
}

func closeWith(logger *log.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error("Closing "+what+" failed", log.FieldError, err)
	}
}
