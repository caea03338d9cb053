package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// BinaryOrder is a fixed-payout bet on the direction of a symbol's price
// until ClosedAt.
type BinaryOrder struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Symbol        string                  `gorm:"column:symbol;type:varchar(32);not null"`
	Currency      string                  `gorm:"column:currency;type:varchar(16);not null"`
	WalletType    enums.WalletType        `gorm:"column:wallet_type;type:varchar(16);not null"`
	Side          enums.BinaryOrderSide   `gorm:"column:side;type:varchar(8);not null"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:numeric(36,18);not null"`
	PayoutPercent decimal.Decimal         `gorm:"column:payout_percent;type:numeric(9,4);not null"`
	EntryPrice    decimal.Decimal         `gorm:"column:entry_price;type:numeric(36,18);not null"`
	ClosePrice    decimal.NullDecimal     `gorm:"column:close_price;type:numeric(36,18)"`
	Status        enums.BinaryOrderStatus `gorm:"column:status;type:varchar(16);not null;index"`
	State         enums.RecordState       `gorm:"column:state;type:varchar(16);not null"`
	ClosedAt      time.Time               `gorm:"column:closed_at;not null;index"`
	SettledAt     *time.Time              `gorm:"column:settled_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (BinaryOrder) TableName() string { return "binary_orders" }

func (o *BinaryOrder) BeforeCreate(*gorm.DB) error {
	assignIdentity(&o.ID, &o.State)
	return nil
}
