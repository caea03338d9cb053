package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Repository is the transaction ledger. Rows are append-only apart from the
// one-way status settle and the compensating soft delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Transaction, error)
	FindByReference(ctx context.Context, referenceID uuid.UUID, scope enums.Scope) ([]models.Transaction, error)
	Settle(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (*models.Transaction, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.Transaction], error)
}

// Filter narrows a transaction listing. Zero values are ignored.
type Filter struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Type     enums.TransactionType
	Status   enums.TransactionStatus
	Scope    enums.Scope
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns a transaction ledger bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) Append(ctx context.Context, txn *models.Transaction) error {
	if err := validateAppend(txn); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func validateAppend(txn *models.Transaction) error {
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}
	if txn.WalletID == uuid.Nil || txn.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet id and user id are required")
	}
	if !txn.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", txn.Type)
	}
	if txn.Amount.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "transaction amount must be greater than zero")
	}
	if txn.Fee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "transaction fee cannot be negative")
	}
	if txn.Status != enums.TransactionStatusPending && txn.Status != enums.TransactionStatusCompleted {
		return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "transactions start PENDING or COMPLETED, got %q", txn.Status)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Transaction, error) {
	var txn models.Transaction
	err := scoped(r.db.WithContext(ctx), scope).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByReference(ctx context.Context, referenceID uuid.UUID, scope enums.Scope) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := scoped(r.db.WithContext(ctx), scope).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Settle moves a PENDING transaction to a terminal status. The update is
// conditional on the current status so concurrent settlers cannot both win.
func (r *repository) Settle(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (*models.Transaction, error) {
	if !status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot settle to %q", status)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND state = ?", id, enums.TransactionStatusPending, enums.RecordStateActive).
		Updates(map[string]any{"status": status, "updated_at": r.now()})
	if res.Error != nil {
		return nil, res.Error
	}

	txn, err := r.FindByID(ctx, id, enums.ScopeIncludeDeleted)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "transaction already %s", txn.Status).
			WithDetails(map[string]any{"transactionId": id.String(), "status": txn.Status})
	}
	return txn, nil
}

// SoftDelete tags the row DELETED. Only compensating reversals call it.
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND state = ?", id, enums.RecordStateActive).
		Updates(map[string]any{"state": enums.RecordStateDeleted, "updated_at": r.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.Transaction], error) {
	q := scoped(r.db.WithContext(ctx), filter.Scope)
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.WalletID != uuid.Nil {
		q = q.Where("wallet_id = ?", filter.WalletID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return pagination.Find(q, params, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
}

func scoped(q *gorm.DB, scope enums.Scope) *gorm.DB {
	if scope == enums.ScopeActive {
		return q.Where("state = ?", enums.RecordStateActive)
	}
	return q
}
