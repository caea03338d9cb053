// Package market is the read-only gateway to external exchange market data.
package market

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

const (
	DefaultDepth = 20
	MaxDepth     = 500
)

// Gateway supplies the prices settlements are computed from.
type Gateway interface {
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
}

// Ticker is the 24h rolling summary for a symbol.
type Ticker struct {
	Symbol        string          `json:"symbol"`
	LastPrice     decimal.Decimal `json:"lastPrice"`
	BidPrice      decimal.Decimal `json:"bidPrice"`
	AskPrice      decimal.Decimal `json:"askPrice"`
	HighPrice     decimal.Decimal `json:"highPrice"`
	LowPrice      decimal.Decimal `json:"lowPrice"`
	Volume        decimal.Decimal `json:"volume"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	FetchedAt     time.Time       `json:"fetchedAt"`
}

type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type OrderBook struct {
	Symbol       string    `json:"symbol"`
	LastUpdateID int64     `json:"lastUpdateId"`
	Bids         []Level   `json:"bids"`
	Asks         []Level   `json:"asks"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// NormalizeSymbol uppercases and strips separators, so "btc/usdt" and
// "BTC-USDT" both become "BTCUSDT".
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
	if len(s) < 5 || len(s) > 20 {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "invalid symbol %q", symbol)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "invalid symbol %q", symbol)
		}
	}
	return s, nil
}

// NormalizeDepth clamps an order book depth request.
func NormalizeDepth(limit int) int {
	if limit <= 0 {
		return DefaultDepth
	}
	if limit > MaxDepth {
		return MaxDepth
	}
	return limit
}

// SplitSymbol splits a symbol into base and quote using the known quote
// assets, longest first.
func SplitSymbol(symbol string) (base, quote string, err error) {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q, nil
		}
	}
	return "", "", pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported quote asset in %q", symbol)
}

var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "EUR", "TRY", "BTC", "ETH", "BNB"}
