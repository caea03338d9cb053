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

type p2pFixture struct {
	*harness
	seller, buyer uuid.UUID
	sellerKey     models.WalletKey
	buyerKey      models.WalletKey
	trade         *Result
}

func openTrade(t *testing.T) p2pFixture {
	t.Helper()
	h := newHarness(t)
	h.settings[settings.KeyP2PFeePercent] = "1"
	f := p2pFixture{harness: h, seller: uuid.New(), buyer: uuid.New()}
	f.sellerKey = h.fund(f.seller, "BTC", "10")
	f.buyerKey = models.NewWalletKey(f.buyer, "BTC", enums.WalletTypeSpot)

	res, err := h.svc.OpenP2PTrade(context.Background(), OpenP2PTradeInput{
		SellerID:     f.seller,
		BuyerID:      f.buyer,
		Currency:     "BTC",
		WalletType:   enums.WalletTypeSpot,
		Amount:       decimal.NewFromInt(10),
		Price:        decimal.NewFromInt(60000),
		FiatCurrency: "usd",
	})
	require.NoError(t, err)
	assert.True(t, res.NewBalance.IsZero())
	assert.Equal(t, string(enums.P2PTradeStatusPending), res.EntityStatus)
	f.trade = res
	return f
}

func (f p2pFixture) action(user uuid.UUID, admin bool) P2PTradeActionInput {
	return P2PTradeActionInput{UserID: user, TradeID: f.trade.EntityID, Admin: admin}
}

func TestP2PTradeHappyPath(t *testing.T) {
	f := openTrade(t)
	ctx := context.Background()

	trade, err := f.trades.FindByID(ctx, f.trade.EntityID, enums.ScopeActive)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.1").Equal(trade.Fee))
	assert.Equal(t, "USD", trade.FiatCurrency)
	require.NotNil(t, trade.EscrowTransactionID)
	assert.Equal(t, f.trade.TransactionID, *trade.EscrowTransactionID)

	paid, err := f.svc.MarkP2PTradePaid(ctx, f.action(f.buyer, false))
	require.NoError(t, err)
	assert.Equal(t, string(enums.P2PTradeStatusPaid), paid.EntityStatus)

	released, err := f.svc.ReleaseP2PTrade(ctx, f.action(f.seller, false))
	require.NoError(t, err)
	assert.Equal(t, string(enums.P2PTradeStatusCompleted), released.EntityStatus)
	assert.True(t, decimal.RequireFromString("9.9").Equal(released.NewBalance))
	assert.True(t, decimal.RequireFromString("9.9").Equal(f.balance(f.buyerKey)))
	assert.True(t, f.balance(f.sellerKey).IsZero())
	assert.True(t, decimal.RequireFromString("0.1").Equal(f.feeBalance("BTC")))

	escrow, err := f.txns.FindByID(ctx, f.trade.TransactionID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusReleased, escrow.Status)

	again, err := f.svc.ReleaseP2PTrade(ctx, f.action(f.seller, false))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, released.TransactionID, again.TransactionID)
	assert.True(t, decimal.RequireFromString("9.9").Equal(f.balance(f.buyerKey)))
	assert.True(t, decimal.RequireFromString("0.1").Equal(f.feeBalance("BTC")))
	assert.EqualValues(t, 1, f.events(enums.EventP2PTradeReleased))
}

func TestP2PTradeOnlySellerReleases(t *testing.T) {
	f := openTrade(t)

	_, err := f.svc.ReleaseP2PTrade(context.Background(), f.action(f.buyer, false))
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.MarkP2PTradePaid(context.Background(), f.action(f.seller, false))
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.CancelP2PTrade(context.Background(), f.action(uuid.New(), false))
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestP2PTradeCancelRefundsSeller(t *testing.T) {
	f := openTrade(t)

	res, err := f.svc.CancelP2PTrade(context.Background(), f.action(f.buyer, false))
	require.NoError(t, err)
	assert.Equal(t, string(enums.P2PTradeStatusCancelled), res.EntityStatus)
	assert.True(t, decimal.NewFromInt(10).Equal(f.balance(f.sellerKey)))

	again, err := f.svc.CancelP2PTrade(context.Background(), f.action(f.seller, false))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.True(t, decimal.NewFromInt(10).Equal(f.balance(f.sellerKey)))

	_, err = f.svc.ReleaseP2PTrade(context.Background(), f.action(f.seller, false))
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestP2PTradePaidCannotBeCancelled(t *testing.T) {
	f := openTrade(t)
	_, err := f.svc.MarkP2PTradePaid(context.Background(), f.action(f.buyer, false))
	require.NoError(t, err)

	_, err = f.svc.CancelP2PTrade(context.Background(), f.action(f.seller, false))
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.True(t, f.balance(f.sellerKey).IsZero())
}

func TestP2PDisputeResolvedByAdmin(t *testing.T) {
	f := openTrade(t)
	ctx := context.Background()

	_, err := f.svc.MarkP2PTradePaid(ctx, f.action(f.buyer, false))
	require.NoError(t, err)
	disputed, err := f.svc.DisputeP2PTrade(ctx, f.action(f.buyer, false))
	require.NoError(t, err)
	assert.Equal(t, string(enums.P2PTradeStatusDisputed), disputed.EntityStatus)

	_, err = f.svc.ReleaseP2PTrade(ctx, f.action(f.seller, false))
	assertCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.CancelP2PTrade(ctx, f.action(f.seller, false))
	assertCode(t, err, pkgerrors.CodeForbidden)

	res, err := f.svc.CancelP2PTrade(ctx, f.action(uuid.New(), true))
	require.NoError(t, err)
	assert.Equal(t, string(enums.P2PTradeStatusCancelled), res.EntityStatus)
	assert.True(t, decimal.NewFromInt(10).Equal(f.balance(f.sellerKey)))

	escrow, err := f.txns.FindByID(ctx, f.trade.TransactionID, enums.ScopeActive)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusRejected, escrow.Status)
}

func TestOpenP2PTradeNeedsFunds(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	key := h.fund(seller, "BTC", "1")

	_, err := h.svc.OpenP2PTrade(context.Background(), OpenP2PTradeInput{
		SellerID:     seller,
		BuyerID:      uuid.New(),
		Currency:     "BTC",
		WalletType:   enums.WalletTypeSpot,
		Amount:       decimal.NewFromInt(2),
		Price:        decimal.NewFromInt(60000),
		FiatCurrency: "USD",
	})
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
	assert.True(t, decimal.NewFromInt(1).Equal(h.balance(key)))
	assert.EqualValues(t, 0, h.events(enums.EventP2PTradeOpened))
}
