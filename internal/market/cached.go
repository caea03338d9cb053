package market

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	MarketKey(kind, symbol string) string
}

// CachedGateway serves recent tickers and order books from Redis. Cache
// failures degrade to a direct fetch.
type CachedGateway struct {
	next  Gateway
	store cacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCachedGateway(next Gateway, store cacheStore, ttl time.Duration, logg *logger.Logger) Gateway {
	if store == nil || ttl <= 0 {
		return next
	}
	return &CachedGateway{next: next, store: store, ttl: ttl, logg: logg}
}

func (g *CachedGateway) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	key := g.store.MarketKey("ticker", symbol)

	var cached Ticker
	if g.load(ctx, key, &cached) {
		return &cached, nil
	}

	ticker, err := g.next.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	g.save(ctx, key, ticker)
	return ticker, nil
}

func (g *CachedGateway) FetchOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	limit = NormalizeDepth(limit)
	key := g.store.MarketKey("depth", symbol+":"+strconv.Itoa(limit))

	var cached OrderBook
	if g.load(ctx, key, &cached) {
		return &cached, nil
	}

	book, err := g.next.FetchOrderBook(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	g.save(ctx, key, book)
	return book, nil
}

func (g *CachedGateway) load(ctx context.Context, key string, dst any) bool {
	raw, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.warn(ctx, key, "market cache read failed", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		g.warn(ctx, key, "market cache entry unreadable", err)
		return false
	}
	return true
}

func (g *CachedGateway) save(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := g.store.Set(ctx, key, payload, g.ttl); err != nil {
		g.warn(ctx, key, "market cache write failed", err)
	}
}

func (g *CachedGateway) warn(ctx context.Context, key, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Warn(g.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), msg)
}
