package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/retrier"
)

// Binance error codes in the -11xx range describe a bad request. Retrying
// them never helps.
const (
	binanceInvalidSymbol  = -1121
	binanceRequestErrHigh = -1100
	binanceRequestErrLow  = -1199
)

// BinanceGateway reads public market data from the Binance REST API.
type BinanceGateway struct {
	client  *binance.Client
	retrier *retrier.Retrier
	logg    *logger.Logger
	now     func() time.Time
}

func NewBinanceGateway(cfg config.MarketConfig, logg *logger.Logger) *BinanceGateway {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &BinanceGateway{
		client: client,
		retrier: retrier.New(
			retrier.WithMaxRetries(cfg.MaxRetries),
			retrier.WithInitialInterval(cfg.RetryInterval),
			retrier.WithRetryIf(isRetryable),
		),
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (g *BinanceGateway) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	stats, err := retrier.DoWithData(g.retrier, ctx, func(ctx context.Context) ([]*binance.PriceChangeStats, error) {
		return g.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		return nil, g.translate(ctx, symbol, err)
	}
	if len(stats) == 0 || stats[0] == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "no ticker returned for %s", symbol)
	}

	s := stats[0]
	ticker := &Ticker{Symbol: symbol, FetchedAt: g.now()}
	fields := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&ticker.LastPrice, s.LastPrice},
		{&ticker.BidPrice, s.BidPrice},
		{&ticker.AskPrice, s.AskPrice},
		{&ticker.HighPrice, s.HighPrice},
		{&ticker.LowPrice, s.LowPrice},
		{&ticker.Volume, s.Volume},
		{&ticker.ChangePercent, s.PriceChangePercent},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed ticker from market provider")
		}
		*f.dst = v
	}
	if !ticker.LastPrice.IsPositive() {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "market provider returned no price for %s", symbol)
	}
	return ticker, nil
}

func (g *BinanceGateway) FetchOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	limit = NormalizeDepth(limit)

	depth, err := retrier.DoWithData(g.retrier, ctx, func(ctx context.Context) (*binance.DepthResponse, error) {
		return g.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	})
	if err != nil {
		return nil, g.translate(ctx, symbol, err)
	}

	book := &OrderBook{Symbol: symbol, LastUpdateID: depth.LastUpdateID, FetchedAt: g.now()}
	if book.Bids, err = levels(depth.Bids); err != nil {
		return nil, err
	}
	if book.Asks, err = levels(depth.Asks); err != nil {
		return nil, err
	}
	return book, nil
}

func levels(in []common.PriceLevel) ([]Level, error) {
	out := make([]Level, 0, len(in))
	for _, lvl := range in {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed order book from market provider")
		}
		qty, err := decimal.NewFromString(lvl.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed order book from market provider")
		}
		out = append(out, Level{Price: price, Quantity: qty})
	}
	return out, nil
}

func (g *BinanceGateway) translate(ctx context.Context, symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown symbol %s", symbol)
	}
	if g.logg != nil {
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{"symbol": symbol, "error": err.Error()}), "market data request failed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("market data unavailable for %s", symbol))
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code > binanceRequestErrHigh || apiErr.Code < binanceRequestErrLow
	}
	return true
}
