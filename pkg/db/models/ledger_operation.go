package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxIdempotencyKeyLen is the width of the idempotency_key column. The HTTP
// replay layer and the ledger both reject longer keys.
const MaxIdempotencyKeyLen = 128

// LedgerOperation remembers the outcome of an idempotent ledger call so a
// retry with the same key returns the original result.
type LedgerOperation struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_ledger_operations_key,priority:1"`
	IdempotencyKey string          `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex:ux_ledger_operations_key,priority:2"`
	Operation      string          `gorm:"column:operation;type:varchar(64);not null"`
	RequestHash    string          `gorm:"column:request_hash;type:varchar(64);not null"`
	EntityID       *uuid.UUID      `gorm:"column:entity_id;type:uuid"`
	TransactionID  *uuid.UUID      `gorm:"column:transaction_id;type:uuid"`
	NewBalance     decimal.Decimal `gorm:"column:new_balance;type:numeric(36,18);not null"`
	EntityStatus   string          `gorm:"column:entity_status;type:varchar(32);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

func (LedgerOperation) TableName() string { return "ledger_operations" }

func (o *LedgerOperation) BeforeCreate(*gorm.DB) error {
	assignIdentity(&o.ID, nil)
	return nil
}
