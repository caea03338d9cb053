package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradeledger-backend/internal/bootstrap"
	"github.com/angelmondragon/tradeledger-backend/internal/cron"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "cron-worker")
	if err != nil {
		os.Exit(1)
	}
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	cfg, logg := proc.Config, proc.Logger

	redisClient, err := proc.Redis(ctx)
	if err != nil {
		os.Exit(1)
	}
	components, err := ledger.Wire(ctx, cfg, proc.DB, redisClient, prometheus.DefaultRegisterer, logg)
	if err != nil {
		proc.Exit(ctx, "failed to wire ledger", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		proc.Exit(ctx, "failed to create cron lock", err)
	}
	registry, err := buildRegistry(cfg, proc.DB, components, logg)
	if err != nil {
		proc.Exit(ctx, "failed to register cron jobs", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		proc.Exit(ctx, "failed to create cron service", err)
	}

	proc.ServeAdmin(ctx, map[string]bootstrap.Pinger{"db": proc.DB, "redis": redisClient})
	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, dbClient *db.Client, c *ledger.Components, logg *logger.Logger) (*cron.Registry, error) {
	settle, err := cron.NewBinarySettleJob(cron.BinarySettleJobParams{
		Logger:    logg,
		Orders:    c.BinaryOrders,
		Ledger:    c.Service,
		BatchSize: cfg.Cron.BinarySettleBatch,
	})
	if err != nil {
		return nil, err
	}
	mature, err := cron.NewInvestmentMaturityJob(cron.InvestmentMaturityJobParams{
		Logger:      logg,
		Investments: c.Investments,
		Ledger:      c.Service,
		BatchSize:   cfg.Cron.InvestmentMatureBatch,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := cron.NewSettingsRefreshJob(c.Settings)
	if err != nil {
		return nil, err
	}
	purge, err := cron.NewIdempotencyPurgeJob(cron.IdempotencyPurgeJobParams{
		Logger:     logg,
		Operations: c.Operations,
		TTL:        cfg.Ledger.IdempotencyTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Outbox:        outbox.NewRepository(dbClient.DB()),
		DLQ:           outbox.NewDLQRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
		DLQDays:       cfg.Outbox.DLQRetention,
		MinAttempts:   cfg.Outbox.MaxAttempts,
		BacklogWarn:   cfg.Outbox.BacklogWarn,
	})
	if err != nil {
		return nil, err
	}
	// settings first so the settlement jobs see fresh payout percentages
	registry := cron.NewRegistry(refresh, settle, mature)
	registry.RegisterEvery(purge, cfg.Cron.MaintenanceEvery)
	registry.RegisterEvery(retention, cfg.Cron.MaintenanceEvery)
	return registry, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
