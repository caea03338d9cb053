package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateWallet        OutboxAggregateType = "wallet"
	AggregateInvestment    OutboxAggregateType = "ai_investment"
	AggregateP2PTrade      OutboxAggregateType = "p2p_trade"
	AggregateBinaryOrder   OutboxAggregateType = "binary_order"
	AggregateExchangeOrder OutboxAggregateType = "exchange_order"
	AggregateTransaction   OutboxAggregateType = "transaction"
)

var aggregateTypes = newSet("aggregate type", false,
	AggregateWallet,
	AggregateInvestment,
	AggregateP2PTrade,
	AggregateBinaryOrder,
	AggregateExchangeOrder,
	AggregateTransaction,
)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType names a committed ledger fact published to subscribers.
type OutboxEventType string

const (
	EventFundsDeposited       OutboxEventType = "funds_deposited"
	EventWithdrawalRequested  OutboxEventType = "withdrawal_requested"
	EventWithdrawalSettled    OutboxEventType = "withdrawal_settled"
	EventFundsTransferred     OutboxEventType = "funds_transferred"
	EventInvestmentCreated    OutboxEventType = "investment_created"
	EventInvestmentCancelled  OutboxEventType = "investment_cancelled"
	EventInvestmentCompleted  OutboxEventType = "investment_completed"
	EventP2PTradeOpened       OutboxEventType = "p2p_trade_opened"
	EventP2PTradeStatusChange OutboxEventType = "p2p_trade_status_changed"
	EventP2PTradeReleased     OutboxEventType = "p2p_trade_released"
	EventP2PTradeCancelled    OutboxEventType = "p2p_trade_cancelled"
	EventBinaryOrderPlaced    OutboxEventType = "binary_order_placed"
	EventBinaryOrderSettled   OutboxEventType = "binary_order_settled"
	EventBinaryOrderCancelled OutboxEventType = "binary_order_cancelled"
	EventExchangeOrderPlaced  OutboxEventType = "exchange_order_placed"
	EventExchangeOrderFilled  OutboxEventType = "exchange_order_filled"
	EventExchangeOrderCancel  OutboxEventType = "exchange_order_cancelled"
)

// eventAggregates fixes the aggregate each event type is published under.
// Consumers key their ordering on the aggregate id, so an event type never
// changes aggregate.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventFundsDeposited:       AggregateWallet,
	EventWithdrawalRequested:  AggregateTransaction,
	EventWithdrawalSettled:    AggregateTransaction,
	EventFundsTransferred:     AggregateWallet,
	EventInvestmentCreated:    AggregateInvestment,
	EventInvestmentCancelled:  AggregateInvestment,
	EventInvestmentCompleted:  AggregateInvestment,
	EventP2PTradeOpened:       AggregateP2PTrade,
	EventP2PTradeStatusChange: AggregateP2PTrade,
	EventP2PTradeReleased:     AggregateP2PTrade,
	EventP2PTradeCancelled:    AggregateP2PTrade,
	EventBinaryOrderPlaced:    AggregateBinaryOrder,
	EventBinaryOrderSettled:   AggregateBinaryOrder,
	EventBinaryOrderCancelled: AggregateBinaryOrder,
	EventExchangeOrderPlaced:  AggregateExchangeOrder,
	EventExchangeOrderFilled:  AggregateExchangeOrder,
	EventExchangeOrderCancel:  AggregateExchangeOrder,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate is the aggregate type e belongs to, or "" for unknown types.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
