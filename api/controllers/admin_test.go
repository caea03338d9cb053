package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

type fakeSettings struct {
	values    map[string]string
	refreshed int
	setErr    error
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	f.refreshed++
	return nil
}

func (f *fakeSettings) Refresh(context.Context) error {
	f.refreshed++
	return nil
}

func (f *fakeSettings) Snapshot() map[string]string { return f.values }

func (f *fakeSettings) LoadedAt() time.Time { return time.Unix(0, 0).UTC() }

func withKey(req *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestPutSettingWritesThrough(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{}}
	req := withKey(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"value":" 0.25 "}`)), "key", "exchange_fee_percent")
	resp := httptest.NewRecorder()
	PutSetting(settings, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if settings.values["exchange_fee_percent"] != "0.25" {
		t.Fatalf("unexpected stored value %q", settings.values["exchange_fee_percent"])
	}
	if settings.refreshed != 1 {
		t.Fatalf("expected cache refresh on write")
	}
}

func TestPutSettingSurfacesValidation(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{}, setErr: pkgerrors.New(pkgerrors.CodeValidation, "bad value")}
	req := withKey(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"value":"-1"}`)), "key", "exchange_fee_percent")
	resp := httptest.NewRecorder()
	PutSetting(settings, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRefreshSettings(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{}}
	resp := httptest.NewRecorder()
	RefreshSettings(settings, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusOK || settings.refreshed != 1 {
		t.Fatalf("expected refresh, status %d", resp.Code)
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": ok, "redis": ok}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": ok, "redis": down}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

type fakeGateway struct {
	symbol string
	depth  int
}

func (f *fakeGateway) FetchTicker(_ context.Context, symbol string) (*market.Ticker, error) {
	f.symbol = symbol
	return &market.Ticker{Symbol: symbol, LastPrice: decimal.NewFromInt(100)}, nil
}

func (f *fakeGateway) FetchOrderBook(_ context.Context, symbol string, limit int) (*market.OrderBook, error) {
	f.symbol = symbol
	f.depth = limit
	return &market.OrderBook{Symbol: symbol}, nil
}

func TestMarketTickerNormalizesSymbol(t *testing.T) {
	gw := &fakeGateway{}
	req := withKey(httptest.NewRequest(http.MethodGet, "/", nil), "symbol", "btc-usdt")
	resp := httptest.NewRecorder()
	MarketTicker(gw, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gw.symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %s", gw.symbol)
	}
}

func TestMarketOrderBookDepthBounds(t *testing.T) {
	gw := &fakeGateway{}
	req := withKey(httptest.NewRequest(http.MethodGet, "/?limit=5000", nil), "symbol", "ETHUSDT")
	resp := httptest.NewRecorder()
	MarketOrderBook(gw, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withKey(httptest.NewRequest(http.MethodGet, "/", nil), "symbol", "ETHUSDT")
	resp = httptest.NewRecorder()
	MarketOrderBook(gw, testLogger())(resp, req)
	if resp.Code != http.StatusOK || gw.depth != market.DefaultDepth {
		t.Fatalf("expected default depth, got status %d depth %d", resp.Code, gw.depth)
	}
}
