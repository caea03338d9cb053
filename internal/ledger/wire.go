package ledger

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradeledger-backend/internal/binary"
	"github.com/angelmondragon/tradeledger-backend/internal/exchange"
	"github.com/angelmondragon/tradeledger-backend/internal/investments"
	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/internal/p2p"
	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/internal/transactions"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/redis"
)

// Components are the wired coordinator plus the collaborators that binaries
// also need directly.
type Components struct {
	Service      Service
	Settings     *settings.Cache
	Market       market.Gateway
	Wallets      wallets.Repository
	Transactions transactions.Repository
	Investments  investments.Repository
	Trades       p2p.Repository
	BinaryOrders binary.Repository
	Exchange     exchange.Repository
	Operations   Repository
}

// Wire builds the ledger coordinator from bootstrapped clients and loads the
// initial settings snapshot. redisClient may be nil, which disables market
// data caching.
func Wire(ctx context.Context, cfg *config.Config, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer, logg *logger.Logger) (*Components, error) {
	if cfg == nil || dbClient == nil {
		return nil, fmt.Errorf("config and database client required")
	}
	gdb := dbClient.DB()

	cache, err := settings.NewCache(settings.NewRepository(gdb), logg)
	if err != nil {
		return nil, err
	}
	if err := cache.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var gateway market.Gateway = market.NewBinanceGateway(cfg.Market, logg)
	if redisClient != nil {
		gateway = market.NewCachedGateway(gateway, redisClient, cfg.Market.TickerCacheTTL, logg)
	}

	c := &Components{
		Settings:     cache,
		Market:       gateway,
		Wallets:      wallets.NewRepository(gdb),
		Transactions: transactions.NewRepository(gdb),
		Investments:  investments.NewRepository(gdb),
		Trades:       p2p.NewRepository(gdb),
		BinaryOrders: binary.NewRepository(gdb),
		Exchange:     exchange.NewRepository(gdb),
		Operations:   NewRepository(gdb),
	}
	svc, err := NewService(Deps{
		DB:           dbClient,
		Wallets:      c.Wallets,
		Transactions: c.Transactions,
		Investments:  c.Investments,
		Trades:       c.Trades,
		BinaryOrders: c.BinaryOrders,
		Exchange:     c.Exchange,
		Operations:   c.Operations,
		Settings:     cache,
		Market:       gateway,
		Outbox:       outbox.NewService(outbox.NewRepository(gdb), logg),
		Metrics:      metrics.NewLedgerMetrics(reg),
		Logger:       logg,
		Config:       cfg.Ledger,
	})
	if err != nil {
		return nil, err
	}
	c.Service = svc
	return c, nil
}
