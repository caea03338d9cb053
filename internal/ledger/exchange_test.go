package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLimitBuyFillRefundsPriceImprovement(t *testing.T) {
	h := newHarness(t)
	h.settings[settings.KeyExchangeFeePercent] = "0.1"
	user := uuid.New()
	usdt := h.fund(user, "USDT", "40000")
	btc := models.NewWalletKey(user, "BTC", enums.WalletTypeSpot)

	placed, err := h.svc.PlaceExchangeOrder(context.Background(), PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "BTC-USDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideBuy,
		Type:       enums.OrderTypeLimit,
		Amount:     dec("0.5"),
		Price:      dec("60000"),
	})
	require.NoError(t, err)
	assert.True(t, dec("10000").Equal(placed.NewBalance))
	assert.Equal(t, string(enums.ExchangeOrderStatusOpen), placed.EntityStatus)

	filled, err := h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{
		ActorID:   uuid.New(),
		OrderID:   placed.EntityID,
		FillPrice: dec("59000"),
	})
	require.NoError(t, err)
	assert.Equal(t, string(enums.ExchangeOrderStatusClosed), filled.EntityStatus)
	assert.True(t, dec("0.4995").Equal(filled.NewBalance))
	assert.True(t, dec("0.4995").Equal(h.balance(btc)))
	assert.True(t, dec("10500").Equal(h.balance(usdt)))
	assert.True(t, dec("0.0005").Equal(h.feeBalance("BTC")))

	order, err := h.orders.FindByID(context.Background(), placed.EntityID, enums.ScopeActive)
	require.NoError(t, err)
	assert.True(t, order.FillPrice.Valid)
	assert.True(t, dec("59000").Equal(order.FillPrice.Decimal))
	assert.True(t, dec("0.0005").Equal(order.Fee))
	require.NotNil(t, order.FilledAt)

	hold, err := h.txns.FindByID(context.Background(), placed.TransactionID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, hold.Status)

	again, err := h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, filled.TransactionID, again.TransactionID)
	assert.True(t, dec("0.4995").Equal(h.balance(btc)))
	assert.True(t, dec("0.0005").Equal(h.feeBalance("BTC")))
	assert.EqualValues(t, 1, h.events(enums.EventExchangeOrderFilled))
}

func TestLimitSellFillChargesFeeOnProceeds(t *testing.T) {
	h := newHarness(t)
	h.settings[settings.KeyExchangeFeePercent] = "0.1"
	user := uuid.New()
	btc := h.fund(user, "BTC", "1")
	usdt := models.NewWalletKey(user, "USDT", enums.WalletTypeSpot)

	placed, err := h.svc.PlaceExchangeOrder(context.Background(), PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "BTCUSDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideSell,
		Type:       enums.OrderTypeLimit,
		Amount:     dec("1"),
		Price:      dec("60000"),
	})
	require.NoError(t, err)
	assert.True(t, h.balance(btc).IsZero())

	_, err = h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID, FillPrice: dec("59999")})
	assertCode(t, err, pkgerrors.CodeValidation)

	res, err := h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID, FillPrice: dec("61000")})
	require.NoError(t, err)
	assert.True(t, dec("60939").Equal(res.NewBalance))
	assert.True(t, dec("60939").Equal(h.balance(usdt)))
	assert.True(t, dec("61").Equal(h.feeBalance("USDT")))
}

func TestLimitBuyRejectsFillAboveLimit(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	usdt := h.fund(user, "USDT", "1000")

	placed, err := h.svc.PlaceExchangeOrder(context.Background(), PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "ETHUSDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideBuy,
		Type:       enums.OrderTypeLimit,
		Amount:     dec("1"),
		Price:      dec("500"),
	})
	require.NoError(t, err)

	_, err = h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID, FillPrice: dec("501")})
	assertCode(t, err, pkgerrors.CodeValidation)
	assert.True(t, dec("500").Equal(h.balance(usdt)))
}

func TestMarketBuyHoldsAtAskPrice(t *testing.T) {
	h := newHarness(t)
	h.market.set("ETHUSDT", "100", "99.5", "100.5")
	user := uuid.New()
	usdt := h.fund(user, "USDT", "300")

	placed, err := h.svc.PlaceExchangeOrder(context.Background(), PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "ETHUSDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideBuy,
		Type:       enums.OrderTypeMarket,
		Amount:     dec("2"),
	})
	require.NoError(t, err)
	assert.True(t, dec("99").Equal(h.balance(usdt)))

	order, err := h.orders.FindByID(context.Background(), placed.EntityID, enums.ScopeActive)
	require.NoError(t, err)
	assert.True(t, dec("201").Equal(order.HeldAmount))
	assert.True(t, dec("100.5").Equal(order.Price))

	_, err = h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID, FillPrice: dec("101")})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.FillExchangeOrder(context.Background(), FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID, FillPrice: dec("100")})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(h.balance(usdt)))
	assert.True(t, dec("2").Equal(h.balance(models.NewWalletKey(user, "ETH", enums.WalletTypeSpot))))
}

func TestCancelExchangeOrder(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	usdt := h.fund(user, "USDT", "1000")
	ctx := context.Background()

	placed, err := h.svc.PlaceExchangeOrder(ctx, PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "ETHUSDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideBuy,
		Type:       enums.OrderTypeLimit,
		Amount:     dec("1.5"),
		Price:      dec("400"),
	})
	require.NoError(t, err)
	assert.True(t, dec("400").Equal(h.balance(usdt)))

	_, err = h.svc.CancelExchangeOrder(ctx, EntityActionInput{UserID: uuid.New(), EntityID: placed.EntityID})
	assertCode(t, err, pkgerrors.CodeForbidden)

	res, err := h.svc.CancelExchangeOrder(ctx, EntityActionInput{UserID: user, EntityID: placed.EntityID})
	require.NoError(t, err)
	assert.Equal(t, string(enums.ExchangeOrderStatusCancelled), res.EntityStatus)
	assert.True(t, dec("1000").Equal(h.balance(usdt)))

	again, err := h.svc.CancelExchangeOrder(ctx, EntityActionInput{UserID: user, EntityID: placed.EntityID})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.True(t, dec("1000").Equal(h.balance(usdt)))

	_, err = h.svc.FillExchangeOrder(ctx, FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID})
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	hold, err := h.txns.FindByID(ctx, placed.TransactionID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusRejected, hold.Status)
}

func TestCancelFilledExchangeOrder(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	h.fund(user, "BTC", "1")
	ctx := context.Background()

	placed, err := h.svc.PlaceExchangeOrder(ctx, PlaceExchangeOrderInput{
		UserID:     user,
		Symbol:     "BTCUSDT",
		WalletType: enums.WalletTypeSpot,
		Side:       enums.OrderSideSell,
		Type:       enums.OrderTypeLimit,
		Amount:     dec("0.5"),
		Price:      dec("60000"),
	})
	require.NoError(t, err)
	_, err = h.svc.FillExchangeOrder(ctx, FillExchangeOrderInput{ActorID: uuid.New(), OrderID: placed.EntityID})
	require.NoError(t, err)

	_, err = h.svc.CancelExchangeOrder(ctx, EntityActionInput{UserID: user, EntityID: placed.EntityID})
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestPlaceExchangeOrderValidation(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	h.fund(user, "USDT", "10")

	tests := []struct {
		name  string
		input PlaceExchangeOrderInput
		code  pkgerrors.Code
	}{
		{"limit without price", PlaceExchangeOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: enums.OrderSideBuy, Type: enums.OrderTypeLimit, Amount: dec("1")}, pkgerrors.CodeInvalidAmount},
		{"unknown quote", PlaceExchangeOrderInput{UserID: user, Symbol: "BTCXYZ", WalletType: enums.WalletTypeSpot, Side: enums.OrderSideBuy, Type: enums.OrderTypeLimit, Amount: dec("1"), Price: dec("1")}, pkgerrors.CodeValidation},
		{"insufficient", PlaceExchangeOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: enums.OrderSideBuy, Type: enums.OrderTypeLimit, Amount: dec("1"), Price: dec("11")}, pkgerrors.CodeInsufficientFunds},
		{"no base wallet", PlaceExchangeOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: enums.OrderSideSell, Type: enums.OrderTypeLimit, Amount: dec("1"), Price: dec("1")}, pkgerrors.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.PlaceExchangeOrder(context.Background(), tc.input)
			assertCode(t, err, tc.code)
		})
	}
	assert.True(t, dec("10").Equal(h.balance(models.NewWalletKey(user, "USDT", enums.WalletTypeSpot))))
}
