// Package payloads holds the data published for each committed ledger fact.
package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// BalanceMovedEvent covers deposits and withdrawals.
type BalanceMovedEvent struct {
	TransactionID uuid.UUID               `json:"transactionId"`
	UserID        uuid.UUID               `json:"userId"`
	WalletType    enums.WalletType        `json:"walletType"`
	Currency      string                  `json:"currency"`
	Amount        decimal.Decimal         `json:"amount"`
	Fee           decimal.Decimal         `json:"fee"`
	Status        enums.TransactionStatus `json:"status"`
	NewBalance    decimal.Decimal         `json:"newBalance"`
}

type FundsTransferredEvent struct {
	FromUserID            uuid.UUID        `json:"fromUserId"`
	ToUserID              uuid.UUID        `json:"toUserId"`
	FromWalletType        enums.WalletType `json:"fromWalletType"`
	ToWalletType          enums.WalletType `json:"toWalletType"`
	Currency              string           `json:"currency"`
	Amount                decimal.Decimal  `json:"amount"`
	Fee                   decimal.Decimal  `json:"fee"`
	OutgoingTransactionID uuid.UUID        `json:"outgoingTransactionId"`
	IncomingTransactionID uuid.UUID        `json:"incomingTransactionId"`
}

type InvestmentEvent struct {
	InvestmentID  uuid.UUID              `json:"investmentId"`
	UserID        uuid.UUID              `json:"userId"`
	Plan          string                 `json:"plan"`
	Currency      string                 `json:"currency"`
	Amount        decimal.Decimal        `json:"amount"`
	Profit        decimal.Decimal        `json:"profit,omitempty"`
	Status        enums.InvestmentStatus `json:"status"`
	TransactionID uuid.UUID              `json:"transactionId"`
	NewBalance    decimal.Decimal        `json:"newBalance"`
}

type P2PTradeEvent struct {
	TradeID       uuid.UUID            `json:"tradeId"`
	SellerID      uuid.UUID            `json:"sellerId"`
	BuyerID       uuid.UUID            `json:"buyerId"`
	Currency      string               `json:"currency"`
	Amount        decimal.Decimal      `json:"amount"`
	Fee           decimal.Decimal      `json:"fee"`
	Status        enums.P2PTradeStatus `json:"status"`
	TransactionID *uuid.UUID           `json:"transactionId,omitempty"`
}

type BinaryOrderEvent struct {
	OrderID       uuid.UUID               `json:"orderId"`
	UserID        uuid.UUID               `json:"userId"`
	Symbol        string                  `json:"symbol"`
	Side          enums.BinaryOrderSide   `json:"side"`
	Amount        decimal.Decimal         `json:"amount"`
	EntryPrice    decimal.Decimal         `json:"entryPrice"`
	ClosePrice    decimal.NullDecimal     `json:"closePrice"`
	Payout        decimal.Decimal         `json:"payout"`
	Status        enums.BinaryOrderStatus `json:"status"`
	ClosedAt      time.Time               `json:"closedAt"`
	TransactionID uuid.UUID               `json:"transactionId"`
}

type ExchangeOrderEvent struct {
	OrderID       uuid.UUID                 `json:"orderId"`
	UserID        uuid.UUID                 `json:"userId"`
	Symbol        string                    `json:"symbol"`
	Side          enums.OrderSide           `json:"side"`
	Type          enums.OrderType           `json:"type"`
	Price         decimal.Decimal           `json:"price"`
	Amount        decimal.Decimal           `json:"amount"`
	FillPrice     decimal.NullDecimal       `json:"fillPrice"`
	Fee           decimal.Decimal           `json:"fee"`
	Status        enums.ExchangeOrderStatus `json:"status"`
	TransactionID uuid.UUID                 `json:"transactionId"`
}
