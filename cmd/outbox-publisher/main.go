package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradeledger-backend/internal/bootstrap"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tradeledger-backend/pkg/pubsub"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "outbox-publisher")
	if err != nil {
		os.Exit(1)
	}
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	cfg, logg := proc.Config, proc.Logger

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		proc.Exit(ctx, "failed to bootstrap pubsub", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		proc.Exit(ctx, "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            proc.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(proc.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(proc.DB.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		proc.Exit(ctx, "failed to create outbox publisher", err)
	}

	proc.ServeAdmin(ctx, map[string]bootstrap.Pinger{"db": proc.DB, "pubsub": pubsubClient})
	logg.Info(logg.WithField(ctx, "topic", cfg.PubSub.LedgerTopic), "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
