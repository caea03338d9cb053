package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// Investment is a user's subscription to an AI investment plan. The amount
// stays locked until the investment matures or is cancelled.
type Investment struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Plan          string                 `gorm:"column:plan;type:varchar(64);not null"`
	Currency      string                 `gorm:"column:currency;type:varchar(16);not null"`
	WalletType    enums.WalletType       `gorm:"column:wallet_type;type:varchar(16);not null"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(36,18);not null"`
	ProfitPercent decimal.Decimal        `gorm:"column:profit_percent;type:numeric(9,4);not null"`
	Status        enums.InvestmentStatus `gorm:"column:status;type:varchar(16);not null;index"`
	State         enums.RecordState      `gorm:"column:state;type:varchar(16);not null"`
	MaturesAt     time.Time              `gorm:"column:matures_at;not null;index"`
	CancelledAt   *time.Time             `gorm:"column:cancelled_at"`
	CompletedAt   *time.Time             `gorm:"column:completed_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Investment) TableName() string { return "ai_investments" }

func (i *Investment) BeforeCreate(*gorm.DB) error {
	assignIdentity(&i.ID, &i.State)
	return nil
}
