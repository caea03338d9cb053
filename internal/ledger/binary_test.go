package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

func placeBinary(t *testing.T, h *harness, user uuid.UUID, side enums.BinaryOrderSide) *Result {
	t.Helper()
	res, err := h.svc.PlaceBinaryOrder(context.Background(), PlaceBinaryOrderInput{
		UserID:     user,
		Symbol:     "btc/usdt",
		WalletType: enums.WalletTypeSpot,
		Side:       side,
		Amount:     decimal.NewFromInt(10),
		Duration:   time.Minute,
	})
	require.NoError(t, err)
	return res
}

func TestBinaryOrderSettlement(t *testing.T) {
	tests := []struct {
		name    string
		side    enums.BinaryOrderSide
		close   string
		outcome enums.BinaryOrderStatus
		balance string
	}{
		{"rise wins", enums.BinaryOrderSideRise, "110", enums.BinaryOrderStatusWin, "108.5"},
		{"rise loses", enums.BinaryOrderSideRise, "90", enums.BinaryOrderStatusLoss, "90"},
		{"fall wins", enums.BinaryOrderSideFall, "90", enums.BinaryOrderStatusWin, "108.5"},
		{"draw refunds", enums.BinaryOrderSideFall, "100", enums.BinaryOrderStatusDraw, "100"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.market.set("BTCUSDT", "100", "99.5", "100.5")
			user := uuid.New()
			key := h.fund(user, "USDT", "100")

			placed := placeBinary(t, h, user, tc.side)
			assert.True(t, decimal.NewFromInt(90).Equal(placed.NewBalance))

			h.market.set("BTCUSDT", tc.close, tc.close, tc.close)
			h.clock.Advance(2 * time.Minute)

			res, err := h.svc.SettleBinaryOrder(context.Background(), placed.EntityID)
			require.NoError(t, err)
			assert.Equal(t, string(tc.outcome), res.EntityStatus)
			assert.True(t, decimal.RequireFromString(tc.balance).Equal(h.balance(key)), "balance %s", h.balance(key))

			order, err := h.binaries.FindByID(context.Background(), placed.EntityID, enums.ScopeActive)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, order.Status)
			assert.True(t, order.ClosePrice.Valid)

			stake, err := h.txns.FindByID(context.Background(), placed.TransactionID, enums.ScopeActive)
			require.NoError(t, err)
			assert.Equal(t, enums.TransactionStatusCompleted, stake.Status)

			again, err := h.svc.SettleBinaryOrder(context.Background(), placed.EntityID)
			require.NoError(t, err)
			assert.True(t, again.Replayed)
			assert.True(t, decimal.RequireFromString(tc.balance).Equal(h.balance(key)))
		})
	}
}

func TestSettleBinaryOrderBeforeClose(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	h.fund(user, "USDT", "100")
	placed := placeBinary(t, h, user, enums.BinaryOrderSideRise)

	_, err := h.svc.SettleBinaryOrder(context.Background(), placed.EntityID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestSettleBinaryOrderMarketDownMovesNothing(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	key := h.fund(user, "USDT", "100")
	placed := placeBinary(t, h, user, enums.BinaryOrderSideRise)

	h.clock.Advance(2 * time.Minute)
	h.market.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection refused"), "binance unavailable")

	_, err := h.svc.SettleBinaryOrder(context.Background(), placed.EntityID)
	assertCode(t, err, pkgerrors.CodeDependency)
	assert.True(t, decimal.NewFromInt(90).Equal(h.balance(key)))

	order, err := h.binaries.FindByID(context.Background(), placed.EntityID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.BinaryOrderStatusPending, order.Status)
}

func TestSettleBinaryOrderWithoutStakeRowRollsBackPayout(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	key := h.fund(user, "USDT", "100")
	placed := placeBinary(t, h, user, enums.BinaryOrderSideRise)

	require.NoError(t, h.client.DB().Delete(&models.Transaction{}, "id = ?", placed.TransactionID).Error)
	h.market.set("BTCUSDT", "110", "110", "110")
	h.clock.Advance(2 * time.Minute)

	_, err := h.svc.SettleBinaryOrder(context.Background(), placed.EntityID)
	assertCode(t, err, pkgerrors.CodeIntegrity)
	assert.True(t, decimal.NewFromInt(90).Equal(h.balance(key)), "balance %s", h.balance(key))

	order, err := h.binaries.FindByID(context.Background(), placed.EntityID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.BinaryOrderStatusPending, order.Status)
}

func TestCancelBinaryOrder(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	key := h.fund(user, "USDT", "100")
	placed := placeBinary(t, h, user, enums.BinaryOrderSideRise)

	_, err := h.svc.CancelBinaryOrder(context.Background(), EntityActionInput{UserID: uuid.New(), EntityID: placed.EntityID})
	assertCode(t, err, pkgerrors.CodeForbidden)

	res, err := h.svc.CancelBinaryOrder(context.Background(), EntityActionInput{UserID: user, EntityID: placed.EntityID})
	require.NoError(t, err)
	assert.Equal(t, string(enums.BinaryOrderStatusCancelled), res.EntityStatus)
	assert.True(t, decimal.NewFromInt(100).Equal(h.balance(key)))

	again, err := h.svc.CancelBinaryOrder(context.Background(), EntityActionInput{UserID: user, EntityID: placed.EntityID})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TransactionID, again.TransactionID)
	assert.True(t, decimal.NewFromInt(100).Equal(h.balance(key)))
}

func TestCancelBinaryOrderAfterClose(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	key := h.fund(user, "USDT", "100")
	placed := placeBinary(t, h, user, enums.BinaryOrderSideRise)

	h.clock.Advance(time.Minute)
	_, err := h.svc.CancelBinaryOrder(context.Background(), EntityActionInput{UserID: user, EntityID: placed.EntityID})
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.True(t, decimal.NewFromInt(90).Equal(h.balance(key)))
}

func TestPlaceBinaryOrderValidation(t *testing.T) {
	h := newHarness(t)
	h.market.set("BTCUSDT", "100", "100", "100")
	user := uuid.New()
	h.fund(user, "USDT", "100")

	tests := []struct {
		name  string
		input PlaceBinaryOrderInput
		code  pkgerrors.Code
	}{
		{"too short", PlaceBinaryOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: enums.BinaryOrderSideRise, Amount: decimal.NewFromInt(1), Duration: time.Second}, pkgerrors.CodeValidation},
		{"bad side", PlaceBinaryOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: "UP", Amount: decimal.NewFromInt(1), Duration: time.Minute}, pkgerrors.CodeValidation},
		{"unknown symbol", PlaceBinaryOrderInput{UserID: user, Symbol: "DOGEUSDT", WalletType: enums.WalletTypeSpot, Side: enums.BinaryOrderSideRise, Amount: decimal.NewFromInt(1), Duration: time.Minute}, pkgerrors.CodeNotFound},
		{"broke", PlaceBinaryOrderInput{UserID: user, Symbol: "BTCUSDT", WalletType: enums.WalletTypeSpot, Side: enums.BinaryOrderSideRise, Amount: decimal.NewFromInt(101), Duration: time.Minute}, pkgerrors.CodeInsufficientFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.PlaceBinaryOrder(context.Background(), tc.input)
			assertCode(t, err, tc.code)
		})
	}
}
