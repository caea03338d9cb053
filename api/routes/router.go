package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradeledger-backend/api/controllers"
	"github.com/angelmondragon/tradeledger-backend/api/middleware"
	"github.com/angelmondragon/tradeledger-backend/internal/binary"
	"github.com/angelmondragon/tradeledger-backend/internal/exchange"
	"github.com/angelmondragon/tradeledger-backend/internal/investments"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/internal/p2p"
	"github.com/angelmondragon/tradeledger-backend/internal/transactions"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tradeledger-backend/pkg/redis"
)

// Deps carries the services the HTTP surface is built on.
type Deps struct {
	Ledger         ledger.Service
	Wallets        wallets.Service
	Transactions   transactions.Service
	Investments    investments.Service
	Trades         p2p.Service
	BinaryOrders   binary.Service
	ExchangeOrders exchange.Service
	Market         market.Gateway
	Settings       controllers.SettingsAdmin

	Idempotency pkgredis.IdempotencyStore
	RateLimiter middleware.RateLimitStore
	Pingers     map[string]controllers.Pinger
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	withdrawalLimit := middleware.UserRateLimit(
		middleware.NewRateLimitPolicy("withdrawal", cfg.RateLimit.WithdrawalWindow, cfg.RateLimit.WithdrawalLimit),
		deps.RateLimiter,
		logg,
	)
	orderLimit := middleware.UserRateLimit(
		middleware.NewRateLimitPolicy("order", cfg.RateLimit.OrderWindow, cfg.RateLimit.OrderLimit),
		deps.RateLimiter,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingers, logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", controllers.ListWallets(deps.Wallets, logg))
			r.Get("/{walletType}/{currency}", controllers.GetWallet(deps.Wallets, logg))
			r.Post("/transfer", controllers.Transfer(deps.Ledger, logg))
			r.With(withdrawalLimit).Post("/withdrawals", controllers.RequestWithdrawal(deps.Ledger, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(deps.Transactions, logg))
			r.Get("/{id}", controllers.GetTransaction(deps.Transactions, logg))
		})

		r.Route("/investments", func(r chi.Router) {
			r.Get("/", controllers.ListInvestments(deps.Investments, logg))
			r.Post("/", controllers.CreateInvestment(deps.Ledger, logg))
			r.Get("/{id}", controllers.GetInvestment(deps.Investments, logg))
			r.Post("/{id}/cancel", controllers.CancelInvestment(deps.Ledger, logg))
		})

		r.Route("/p2p/trades", func(r chi.Router) {
			r.Get("/", controllers.ListP2PTrades(deps.Trades, logg))
			r.Post("/", controllers.OpenP2PTrade(deps.Ledger, logg))
			r.Get("/{id}", controllers.GetP2PTrade(deps.Trades, logg))
			r.Post("/{id}/paid", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionPaid, logg))
			r.Post("/{id}/dispute", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionDispute, logg))
			r.Post("/{id}/release", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionRelease, logg))
			r.Post("/{id}/cancel", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionCancel, logg))
		})

		r.Route("/binary/orders", func(r chi.Router) {
			r.Get("/", controllers.ListBinaryOrders(deps.BinaryOrders, logg))
			r.With(orderLimit).Post("/", controllers.PlaceBinaryOrder(deps.Ledger, logg))
			r.Post("/{id}/cancel", controllers.CancelBinaryOrder(deps.Ledger, logg))
		})

		r.Route("/exchange/orders", func(r chi.Router) {
			r.Get("/", controllers.ListExchangeOrders(deps.ExchangeOrders, logg))
			r.With(orderLimit).Post("/", controllers.PlaceExchangeOrder(deps.Ledger, logg))
			r.Post("/{id}/cancel", controllers.CancelExchangeOrder(deps.Ledger, logg))
		})

		r.Route("/market/{symbol}", func(r chi.Router) {
			r.Get("/ticker", controllers.MarketTicker(deps.Market, logg))
			r.Get("/orderbook", controllers.MarketOrderBook(deps.Market, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Post("/deposits", controllers.AdminDeposit(deps.Ledger, logg))
			r.Post("/withdrawals/{id}/approve", controllers.SettleWithdrawal(deps.Ledger, true, logg))
			r.Post("/withdrawals/{id}/reject", controllers.SettleWithdrawal(deps.Ledger, false, logg))
			r.Post("/exchange/orders/{id}/fill", controllers.FillExchangeOrder(deps.Ledger, logg))
			r.Post("/p2p/trades/{id}/release", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionRelease, logg))
			r.Post("/p2p/trades/{id}/cancel", controllers.P2PTradeAction(deps.Ledger, controllers.P2PActionCancel, logg))
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.ListSettings(deps.Settings, logg))
				r.Put("/{key}", controllers.PutSetting(deps.Settings, logg))
				r.Post("/refresh", controllers.RefreshSettings(deps.Settings, logg))
			})
		})
	})

	return r
}
