package wallets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

// Repository is the balance store. It is the only code that writes
// wallets.balance; callers compose it into a ledger transaction via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error)
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, key models.WalletKey) (*models.Wallet, error)
	Ensure(ctx context.Context, key models.WalletKey, decimals int32) (*models.Wallet, error)
	Credit(ctx context.Context, key models.WalletKey, amount decimal.Decimal) (*models.Wallet, error)
	Debit(ctx context.Context, key models.WalletKey, amount decimal.Decimal) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID, scope enums.Scope) ([]models.Wallet, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns a balance store bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) GetBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error) {
	return r.find(ctx, key, false)
}

// FindByID resolves the wallet a transaction row points at.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Wallet, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}
	var wallet models.Wallet
	err := q.First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetForUpdate loads the wallet holding a row lock until the surrounding
// transaction ends.
func (r *repository) GetForUpdate(ctx context.Context, key models.WalletKey) (*models.Wallet, error) {
	return r.find(ctx, key, true)
}

func (r *repository) find(ctx context.Context, key models.WalletKey, lock bool) (*models.Wallet, error) {
	if err := key.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet key")
	}

	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wallet models.Wallet
	err := q.Where("user_id = ? AND currency = ? AND type = ? AND state = ?",
		key.UserID, key.Currency, key.Type, enums.RecordStateActive).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
			WithDetails(map[string]any{"currency": key.Currency, "walletType": key.Type})
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Ensure creates the wallet on first use and returns it locked. A
// soft-deleted wallet for the same key is reactivated.
func (r *repository) Ensure(ctx context.Context, key models.WalletKey, decimals int32) (*models.Wallet, error) {
	if err := key.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet key")
	}
	if decimals < 0 {
		decimals = 0
	}

	candidate := models.Wallet{
		UserID:   key.UserID,
		Currency: key.Currency,
		Type:     key.Type,
		Balance:  decimal.Zero,
		Decimals: decimals,
		State:    enums.RecordStateActive,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND currency = ? AND type = ? AND state = ?",
			key.UserID, key.Currency, key.Type, enums.RecordStateDeleted).
		Updates(map[string]any{"state": enums.RecordStateActive, "updated_at": r.now()}).Error; err != nil {
		return nil, err
	}

	return r.GetForUpdate(ctx, key)
}

func (r *repository) Credit(ctx context.Context, key models.WalletKey, amount decimal.Decimal) (*models.Wallet, error) {
	return r.apply(ctx, key, amount, false)
}

func (r *repository) Debit(ctx context.Context, key models.WalletKey, amount decimal.Decimal) (*models.Wallet, error) {
	return r.apply(ctx, key, amount, true)
}

// apply is the single read-check-write path for balances: row lock, funds
// check, then a version-guarded update. A zero row count on the guarded
// update means another writer slipped in and the caller must roll back.
func (r *repository) apply(ctx context.Context, key models.WalletKey, amount decimal.Decimal, debit bool) (*models.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be greater than zero").
			WithDetails(map[string]any{"amount": amount.String()})
	}

	wallet, err := r.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}

	if !amount.Equal(amount.Truncate(wallet.Decimals)) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount exceeds wallet precision").
			WithDetails(map[string]any{"amount": amount.String(), "decimals": wallet.Decimals})
	}

	next := wallet.Balance.Add(amount)
	if debit {
		next = wallet.Balance.Sub(amount)
		if next.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds").
				WithDetails(map[string]any{
					"currency":  key.Currency,
					"available": wallet.Balance.String(),
					"requested": amount.String(),
				})
		}
	}

	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]any{
			"balance":    next,
			"version":    wallet.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet modified concurrently")
	}

	wallet.Balance = next
	wallet.Version++
	wallet.UpdatedAt = now
	return wallet, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, scope enums.Scope) ([]models.Wallet, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}

	var wallets []models.Wallet
	if err := q.Order("type ASC").Order("currency ASC").Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}
