package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// P2PTrade escrows the seller's funds until payment is confirmed off-platform.
type P2PTrade struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SellerID            uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	BuyerID             uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	Currency            string               `gorm:"column:currency;type:varchar(16);not null"`
	WalletType          enums.WalletType     `gorm:"column:wallet_type;type:varchar(16);not null"`
	Amount              decimal.Decimal      `gorm:"column:amount;type:numeric(36,18);not null"`
	Price               decimal.Decimal      `gorm:"column:price;type:numeric(36,18);not null"`
	FiatCurrency        string               `gorm:"column:fiat_currency;type:varchar(16);not null"`
	Fee                 decimal.Decimal      `gorm:"column:fee;type:numeric(36,18);not null"`
	Status              enums.P2PTradeStatus `gorm:"column:status;type:varchar(16);not null;index"`
	State               enums.RecordState    `gorm:"column:state;type:varchar(16);not null"`
	EscrowTransactionID *uuid.UUID           `gorm:"column:escrow_transaction_id;type:uuid"`
	PaidAt              *time.Time           `gorm:"column:paid_at"`
	CompletedAt         *time.Time           `gorm:"column:completed_at"`
	CancelledAt         *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (P2PTrade) TableName() string { return "p2p_trades" }

func (t *P2PTrade) BeforeCreate(*gorm.DB) error {
	assignIdentity(&t.ID, &t.State)
	return nil
}

// IsParty reports whether userID is the buyer or the seller.
func (t P2PTrade) IsParty(userID uuid.UUID) bool {
	return t.SellerID == userID || t.BuyerID == userID
}
