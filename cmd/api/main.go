package main

import (
	"context"
	"net"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tradeledger-backend/api/controllers"
	"github.com/angelmondragon/tradeledger-backend/api/routes"
	"github.com/angelmondragon/tradeledger-backend/internal/binary"
	"github.com/angelmondragon/tradeledger-backend/internal/bootstrap"
	"github.com/angelmondragon/tradeledger-backend/internal/exchange"
	"github.com/angelmondragon/tradeledger-backend/internal/investments"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/internal/p2p"
	"github.com/angelmondragon/tradeledger-backend/internal/transactions"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "api")
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
	deps, err := buildDeps(components)
	if err != nil {
		proc.Exit(ctx, "failed to build read services", err)
	}
	deps.Idempotency = redisClient
	deps.RateLimiter = redisClient
	deps.Pingers = map[string]controllers.Pinger{"db": proc.DB, "redis": redisClient}
	deps.Metrics = promhttp.Handler()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		proc.Exit(ctx, "failed to listen", err)
	}
	ctx = logg.WithField(ctx, "addr", ln.Addr().String())
	logg.Info(ctx, "starting api server")

	if err := bootstrap.Serve(ctx, ln, routes.NewRouter(cfg, logg, deps), logg); err != nil {
		proc.Exit(ctx, "api server stopped unexpectedly", err)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}

func buildDeps(c *ledger.Components) (routes.Deps, error) {
	walletSvc, err := wallets.NewService(c.Wallets)
	if err != nil {
		return routes.Deps{}, err
	}
	txnSvc, err := transactions.NewService(c.Transactions)
	if err != nil {
		return routes.Deps{}, err
	}
	investmentSvc, err := investments.NewService(c.Investments)
	if err != nil {
		return routes.Deps{}, err
	}
	tradeSvc, err := p2p.NewService(c.Trades)
	if err != nil {
		return routes.Deps{}, err
	}
	binarySvc, err := binary.NewService(c.BinaryOrders)
	if err != nil {
		return routes.Deps{}, err
	}
	exchangeSvc, err := exchange.NewService(c.Exchange)
	if err != nil {
		return routes.Deps{}, err
	}
	return routes.Deps{
		Ledger:         c.Service,
		Wallets:        walletSvc,
		Transactions:   txnSvc,
		Investments:    investmentSvc,
		Trades:         tradeSvc,
		BinaryOrders:   binarySvc,
		ExchangeOrders: exchangeSvc,
		Market:         c.Market,
		Settings:       c.Settings,
	}, nil
}
