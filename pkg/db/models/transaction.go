package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/tradeledger-backend/pkg/db/types"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// Transaction records one balance movement. Amount is always positive; the
// type fixes the direction.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	WalletID    uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.TransactionType   `gorm:"column:type;type:varchar(32);not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:varchar(16);not null"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(36,18);not null"`
	Fee         decimal.Decimal         `gorm:"column:fee;type:numeric(36,18);not null"`
	ReferenceID *uuid.UUID              `gorm:"column:reference_id;type:uuid;index"`
	Description string                  `gorm:"column:description;type:text"`
	Metadata    dbtypes.JSONB           `gorm:"column:metadata;type:jsonb"`
	State       enums.RecordState       `gorm:"column:state;type:varchar(16);not null"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	assignIdentity(&t.ID, &t.State)
	return nil
}
