package enums

// TransactionType is fixed at creation and implies the direction of the
// balance movement.
type TransactionType string

const (
	TransactionTypeDeposit             TransactionType = "DEPOSIT"
	TransactionTypeWithdraw            TransactionType = "WITHDRAW"
	TransactionTypeOutgoingTransfer    TransactionType = "OUTGOING_TRANSFER"
	TransactionTypeIncomingTransfer    TransactionType = "INCOMING_TRANSFER"
	TransactionTypeInvestment          TransactionType = "AI_INVESTMENT"
	TransactionTypeInvestmentRefund    TransactionType = "AI_INVESTMENT_REFUND"
	TransactionTypeInvestmentProfit    TransactionType = "AI_INVESTMENT_PROFIT"
	TransactionTypeP2PEscrow           TransactionType = "P2P_ESCROW"
	TransactionTypeP2PTrade            TransactionType = "P2P_TRADE"
	TransactionTypeP2PRefund           TransactionType = "P2P_REFUND"
	TransactionTypeBinaryOrder         TransactionType = "BINARY_ORDER"
	TransactionTypeBinaryOrderPayout   TransactionType = "BINARY_ORDER_PAYOUT"
	TransactionTypeBinaryOrderRefund   TransactionType = "BINARY_ORDER_REFUND"
	TransactionTypeExchangeOrder       TransactionType = "EXCHANGE_ORDER"
	TransactionTypeExchangeOrderFill   TransactionType = "EXCHANGE_ORDER_FILL"
	TransactionTypeExchangeOrderRefund TransactionType = "EXCHANGE_ORDER_REFUND"
	TransactionTypePlatformFee         TransactionType = "PLATFORM_FEE"
)

var transactionTypes = newSet("transaction type", true,
	TransactionTypeDeposit,
	TransactionTypeWithdraw,
	TransactionTypeOutgoingTransfer,
	TransactionTypeIncomingTransfer,
	TransactionTypeInvestment,
	TransactionTypeInvestmentRefund,
	TransactionTypeInvestmentProfit,
	TransactionTypeP2PEscrow,
	TransactionTypeP2PTrade,
	TransactionTypeP2PRefund,
	TransactionTypeBinaryOrder,
	TransactionTypeBinaryOrderPayout,
	TransactionTypeBinaryOrderRefund,
	TransactionTypeExchangeOrder,
	TransactionTypeExchangeOrderFill,
	TransactionTypeExchangeOrderRefund,
	TransactionTypePlatformFee,
)

func (t TransactionType) IsValid() bool { return transactionTypes.has(t) }

// ParseTransactionType accepts any casing, e.g. from a list filter.
func ParseTransactionType(value string) (TransactionType, error) {
	return transactionTypes.parse(value)
}

// TransactionStatus moves monotonically from PENDING to exactly one terminal value.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusRejected  TransactionStatus = "REJECTED"
	TransactionStatusExpired   TransactionStatus = "EXPIRED"
	TransactionStatusReleased  TransactionStatus = "RELEASED"
)

var transactionStatuses = newSet("transaction status", true,
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusRejected,
	TransactionStatusExpired,
	TransactionStatusReleased,
)

func (s TransactionStatus) IsValid() bool { return transactionStatuses.has(s) }

// IsTerminal reports whether no further status change is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsValid() && s != TransactionStatusPending
}

// CanSettleTo reports whether a transaction in status s may move to next.
func (s TransactionStatus) CanSettleTo(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return transactionStatuses.parse(value)
}
