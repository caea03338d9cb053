package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

// The idempotency key is excluded from JSON so it never feeds the request
// hash it guards.

type CreateInvestmentInput struct {
	UserID         uuid.UUID        `json:"userId"`
	Plan           string           `json:"plan"`
	Currency       string           `json:"currency"`
	WalletType     enums.WalletType `json:"walletType"`
	Amount         decimal.Decimal  `json:"amount"`
	IdempotencyKey string           `json:"-"`
}

type CancelInvestmentInput struct {
	UserID         uuid.UUID `json:"userId"`
	InvestmentID   uuid.UUID `json:"investmentId"`
	IdempotencyKey string    `json:"-"`
}

type DepositInput struct {
	UserID         uuid.UUID        `json:"userId"`
	Currency       string           `json:"currency"`
	WalletType     enums.WalletType `json:"walletType"`
	Amount         decimal.Decimal  `json:"amount"`
	Reference      string           `json:"reference"`
	IdempotencyKey string           `json:"-"`
}

type WithdrawalInput struct {
	UserID         uuid.UUID        `json:"userId"`
	Currency       string           `json:"currency"`
	WalletType     enums.WalletType `json:"walletType"`
	Amount         decimal.Decimal  `json:"amount"`
	Address        string           `json:"address"`
	IdempotencyKey string           `json:"-"`
}

// SettleWithdrawalInput is used by the admin approve/reject flow. ActorID is
// the admin and owns the idempotency key.
type SettleWithdrawalInput struct {
	ActorID        uuid.UUID `json:"actorId"`
	TransactionID  uuid.UUID `json:"transactionId"`
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey string    `json:"-"`
}

type TransferInput struct {
	UserID         uuid.UUID        `json:"userId"`
	ToUserID       uuid.UUID        `json:"toUserId"`
	Currency       string           `json:"currency"`
	FromType       enums.WalletType `json:"fromType"`
	ToType         enums.WalletType `json:"toType"`
	Amount         decimal.Decimal  `json:"amount"`
	IdempotencyKey string           `json:"-"`
}

type OpenP2PTradeInput struct {
	SellerID       uuid.UUID        `json:"sellerId"`
	BuyerID        uuid.UUID        `json:"buyerId"`
	Currency       string           `json:"currency"`
	WalletType     enums.WalletType `json:"walletType"`
	Amount         decimal.Decimal  `json:"amount"`
	Price          decimal.Decimal  `json:"price"`
	FiatCurrency   string           `json:"fiatCurrency"`
	IdempotencyKey string           `json:"-"`
}

// P2PTradeActionInput drives the trade lifecycle. Admin lifts the party
// checks for release and dispute resolution.
type P2PTradeActionInput struct {
	UserID         uuid.UUID `json:"userId"`
	TradeID        uuid.UUID `json:"tradeId"`
	Admin          bool      `json:"admin"`
	IdempotencyKey string    `json:"-"`
}

type PlaceBinaryOrderInput struct {
	UserID         uuid.UUID             `json:"userId"`
	Symbol         string                `json:"symbol"`
	Currency       string                `json:"currency"`
	WalletType     enums.WalletType      `json:"walletType"`
	Side           enums.BinaryOrderSide `json:"side"`
	Amount         decimal.Decimal       `json:"amount"`
	Duration       time.Duration         `json:"duration"`
	IdempotencyKey string                `json:"-"`
}

// EntityActionInput is an owner acting on one of their own entities.
type EntityActionInput struct {
	UserID         uuid.UUID `json:"userId"`
	EntityID       uuid.UUID `json:"entityId"`
	IdempotencyKey string    `json:"-"`
}

type PlaceExchangeOrderInput struct {
	UserID         uuid.UUID        `json:"userId"`
	Symbol         string           `json:"symbol"`
	WalletType     enums.WalletType `json:"walletType"`
	Side           enums.OrderSide  `json:"side"`
	Type           enums.OrderType  `json:"type"`
	Amount         decimal.Decimal  `json:"amount"`
	Price          decimal.Decimal  `json:"price"`
	IdempotencyKey string           `json:"-"`
}

// FillExchangeOrderInput settles an open order. A zero FillPrice fills at
// the order price.
type FillExchangeOrderInput struct {
	ActorID        uuid.UUID       `json:"actorId"`
	OrderID        uuid.UUID       `json:"orderId"`
	FillPrice      decimal.Decimal `json:"fillPrice"`
	IdempotencyKey string          `json:"-"`
}

// fieldErrors collects validation failures so the caller sees all of them
// at once.
type fieldErrors map[string]string

func (f fieldErrors) require(cond bool, field, msg string) {
	if !cond {
		if _, exists := f[field]; !exists {
			f[field] = msg
		}
	}
}

func (f fieldErrors) id(id uuid.UUID, field string) {
	f.require(id != uuid.Nil, field, "is required")
}

func (f fieldErrors) currency(code, field string) {
	code = strings.TrimSpace(code)
	f.require(code != "" && len(code) <= 16, field, "must be a currency code")
}

func (f fieldErrors) walletType(t enums.WalletType, field string) {
	f.require(t.IsValid(), field, "invalid wallet type")
}

func (f fieldErrors) key(key string) {
	f.require(len(key) <= models.MaxIdempotencyKeyLen, "idempotencyKey", "too long")
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger request").WithDetails(map[string]string(f))
}

// positiveAmount is checked apart from other fields so a bad amount surfaces
// as INVALID_AMOUNT.
func positiveAmount(amount decimal.Decimal, field string) error {
	if amount.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be greater than zero").
			WithDetails(map[string]any{"field": field, "amount": amount.String()})
	}
	return nil
}

func (in CreateInvestmentInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.require(strings.TrimSpace(in.Plan) != "", "plan", "is required")
	f.currency(in.Currency, "currency")
	f.walletType(in.WalletType, "walletType")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	return positiveAmount(in.Amount, "amount")
}

func (in CancelInvestmentInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.id(in.InvestmentID, "investmentId")
	f.key(in.IdempotencyKey)
	return f.err()
}

func (in DepositInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.currency(in.Currency, "currency")
	f.walletType(in.WalletType, "walletType")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	return positiveAmount(in.Amount, "amount")
}

func (in WithdrawalInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.currency(in.Currency, "currency")
	f.walletType(in.WalletType, "walletType")
	f.require(strings.TrimSpace(in.Address) != "", "address", "is required")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	return positiveAmount(in.Amount, "amount")
}

func (in SettleWithdrawalInput) validate() error {
	f := fieldErrors{}
	f.id(in.ActorID, "actorId")
	f.id(in.TransactionID, "transactionId")
	f.key(in.IdempotencyKey)
	return f.err()
}

func (in TransferInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.id(in.ToUserID, "toUserId")
	f.currency(in.Currency, "currency")
	f.walletType(in.FromType, "fromType")
	f.walletType(in.ToType, "toType")
	f.require(in.UserID != in.ToUserID || in.FromType != in.ToType, "toType", "source and destination wallet are the same")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	return positiveAmount(in.Amount, "amount")
}

func (in OpenP2PTradeInput) validate() error {
	f := fieldErrors{}
	f.id(in.SellerID, "sellerId")
	f.id(in.BuyerID, "buyerId")
	f.require(in.SellerID != in.BuyerID, "buyerId", "buyer and seller must differ")
	f.currency(in.Currency, "currency")
	f.currency(in.FiatCurrency, "fiatCurrency")
	f.walletType(in.WalletType, "walletType")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	if err := positiveAmount(in.Amount, "amount"); err != nil {
		return err
	}
	return positiveAmount(in.Price, "price")
}

func (in P2PTradeActionInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.id(in.TradeID, "tradeId")
	f.key(in.IdempotencyKey)
	return f.err()
}

func (in PlaceBinaryOrderInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.require(strings.TrimSpace(in.Symbol) != "", "symbol", "is required")
	f.walletType(in.WalletType, "walletType")
	f.require(in.Side.IsValid(), "side", "must be RISE or FALL")
	f.require(in.Duration > 0, "duration", "must be positive")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	return positiveAmount(in.Amount, "amount")
}

func (in EntityActionInput) validate(field string) error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.id(in.EntityID, field)
	f.key(in.IdempotencyKey)
	return f.err()
}

func (in PlaceExchangeOrderInput) validate() error {
	f := fieldErrors{}
	f.id(in.UserID, "userId")
	f.require(strings.TrimSpace(in.Symbol) != "", "symbol", "is required")
	f.walletType(in.WalletType, "walletType")
	f.require(in.Side.IsValid(), "side", "must be BUY or SELL")
	f.require(in.Type.IsValid(), "type", "must be LIMIT or MARKET")
	f.key(in.IdempotencyKey)
	if err := f.err(); err != nil {
		return err
	}
	if err := positiveAmount(in.Amount, "amount"); err != nil {
		return err
	}
	if in.Type == enums.OrderTypeLimit {
		return positiveAmount(in.Price, "price")
	}
	return nil
}

func (in FillExchangeOrderInput) validate() error {
	f := fieldErrors{}
	f.id(in.ActorID, "actorId")
	f.id(in.OrderID, "orderId")
	f.require(!in.FillPrice.IsNegative(), "fillPrice", "must not be negative")
	f.key(in.IdempotencyKey)
	return f.err()
}
