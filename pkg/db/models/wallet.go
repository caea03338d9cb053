package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

// Wallet is the balance record for one (user, currency, wallet type) tuple.
type Wallet struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_wallets_owner,priority:1"`
	Currency  string            `gorm:"column:currency;type:varchar(16);not null;uniqueIndex:ux_wallets_owner,priority:2"`
	Type      enums.WalletType  `gorm:"column:type;type:varchar(16);not null;uniqueIndex:ux_wallets_owner,priority:3"`
	Balance   decimal.Decimal   `gorm:"column:balance;type:numeric(36,18);not null"`
	Decimals  int32             `gorm:"column:decimals;not null"`
	Version   int64             `gorm:"column:version;not null"`
	State     enums.RecordState `gorm:"column:state;type:varchar(16);not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	assignIdentity(&w.ID, &w.State)
	return nil
}

// Key returns the composite identity of the wallet.
func (w Wallet) Key() WalletKey {
	return WalletKey{UserID: w.UserID, Currency: w.Currency, Type: w.Type}
}

// WalletKey addresses a balance record.
type WalletKey struct {
	UserID   uuid.UUID
	Currency string
	Type     enums.WalletType
}

// NewWalletKey normalizes the currency code.
func NewWalletKey(userID uuid.UUID, currency string, walletType enums.WalletType) WalletKey {
	return WalletKey{
		UserID:   userID,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
		Type:     walletType,
	}
}

func (k WalletKey) Validate() error {
	if k.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if k.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if !k.Type.IsValid() {
		return fmt.Errorf("invalid wallet type %q", k.Type)
	}
	return nil
}

// Less orders keys so multi-wallet operations lock rows in a stable order.
func (k WalletKey) Less(other WalletKey) bool {
	return k.String() < other.String()
}

func (k WalletKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.Type, k.Currency)
}
