package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWalletType(t *testing.T) {
	wt, err := ParseWalletType(" spot ")
	require.NoError(t, err)
	assert.Equal(t, WalletTypeSpot, wt)

	_, err = ParseWalletType("MARGIN")
	assert.Error(t, err)
}

func TestTransactionStatusSettlement(t *testing.T) {
	tests := []struct {
		from TransactionStatus
		to   TransactionStatus
		ok   bool
	}{
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusPending, TransactionStatusRejected, true},
		{TransactionStatusPending, TransactionStatusReleased, true},
		{TransactionStatusPending, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusRejected, false},
		{TransactionStatusRejected, TransactionStatusCompleted, false},
		{TransactionStatusPending, TransactionStatus("BOGUS"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanSettleTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestP2PTradeTransitions(t *testing.T) {
	assert.True(t, P2PTradeStatusPending.CanTransitionTo(P2PTradeStatusPaid))
	assert.True(t, P2PTradeStatusPaid.CanTransitionTo(P2PTradeStatusCompleted))
	assert.True(t, P2PTradeStatusDisputed.CanTransitionTo(P2PTradeStatusCancelled))
	assert.False(t, P2PTradeStatusPaid.CanTransitionTo(P2PTradeStatusCancelled))
	assert.False(t, P2PTradeStatusCompleted.CanTransitionTo(P2PTradeStatusCancelled))
	assert.False(t, P2PTradeStatusCancelled.CanTransitionTo(P2PTradeStatusPending))
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, InvestmentStatusCancelled.IsTerminal())
	assert.False(t, InvestmentStatusActive.IsTerminal())
	assert.True(t, BinaryOrderStatusDraw.IsTerminal())
	assert.False(t, BinaryOrderStatusPending.IsTerminal())
	assert.True(t, ExchangeOrderStatusClosed.IsTerminal())
	assert.False(t, ExchangeOrderStatusOpen.IsTerminal())
}

func TestParseOrderEnums(t *testing.T) {
	side, err := ParseOrderSide("buy")
	require.NoError(t, err)
	assert.Equal(t, OrderSideBuy, side)

	typ, err := ParseOrderType("Market")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeMarket, typ)

	bside, err := ParseBinaryOrderSide("fall")
	require.NoError(t, err)
	assert.Equal(t, BinaryOrderSideFall, bside)

	assert.False(t, OutboxEventType("nope").IsValid())
}

func TestEnumSetsParsing(t *testing.T) {
	typ, err := ParseTransactionType(" ai_investment_refund ")
	require.NoError(t, err)
	assert.Equal(t, TransactionTypeInvestmentRefund, typ)

	status, err := ParseTransactionStatus("released")
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusReleased, status)

	_, err = ParseWalletType("margin")
	assert.EqualError(t, err, `invalid wallet type "margin"`)

	// Outbox names are stored lowercase and matched exactly.
	assert.False(t, OutboxAggregateType("WALLET").IsValid())
	assert.True(t, AggregateExchangeOrder.IsValid())
	assert.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	assert.False(t, OutboxDLQErrorReason("timeout").IsValid())
}

func TestEventAggregates(t *testing.T) {
	assert.Equal(t, AggregateTransaction, EventWithdrawalSettled.Aggregate())
	assert.Equal(t, AggregateP2PTrade, EventP2PTradeReleased.Aggregate())
	assert.Empty(t, OutboxEventType("ledger_rebuilt").Aggregate())
	for e, agg := range eventAggregates {
		assert.True(t, agg.IsValid(), "%s maps to unknown aggregate %s", e, agg)
	}
}
