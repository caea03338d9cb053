package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// ExchangeOrder is a spot order whose cost is held in the user's wallet
// until it fills or is cancelled.
type ExchangeOrder struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	Symbol        string                    `gorm:"column:symbol;type:varchar(32);not null"`
	BaseCurrency  string                    `gorm:"column:base_currency;type:varchar(16);not null"`
	QuoteCurrency string                    `gorm:"column:quote_currency;type:varchar(16);not null"`
	WalletType    enums.WalletType          `gorm:"column:wallet_type;type:varchar(16);not null"`
	Side          enums.OrderSide           `gorm:"column:side;type:varchar(8);not null"`
	Type          enums.OrderType           `gorm:"column:type;type:varchar(8);not null"`
	Price         decimal.Decimal           `gorm:"column:price;type:numeric(36,18);not null"`
	Amount        decimal.Decimal           `gorm:"column:amount;type:numeric(36,18);not null"`
	HeldAmount    decimal.Decimal           `gorm:"column:held_amount;type:numeric(36,18);not null"`
	FillPrice     decimal.NullDecimal       `gorm:"column:fill_price;type:numeric(36,18)"`
	Fee           decimal.Decimal           `gorm:"column:fee;type:numeric(36,18);not null"`
	Status        enums.ExchangeOrderStatus `gorm:"column:status;type:varchar(16);not null;index"`
	State         enums.RecordState         `gorm:"column:state;type:varchar(16);not null"`
	FilledAt      *time.Time                `gorm:"column:filled_at"`
	CancelledAt   *time.Time                `gorm:"column:cancelled_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (ExchangeOrder) TableName() string { return "exchange_orders" }

func (o *ExchangeOrder) BeforeCreate(*gorm.DB) error {
	assignIdentity(&o.ID, &o.State)
	return nil
}

// HeldCurrency is the currency locked while the order is open.
func (o ExchangeOrder) HeldCurrency() string {
	if o.Side == enums.OrderSideBuy {
		return o.QuoteCurrency
	}
	return o.BaseCurrency
}
