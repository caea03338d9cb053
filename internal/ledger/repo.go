package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
)

// Repository stores the outcome of keyed ledger operations so a retried
// request replays instead of moving money twice.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByKey(ctx context.Context, userID uuid.UUID, key string) (*models.LedgerOperation, error)
	Record(ctx context.Context, op *models.LedgerOperation) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an operation record repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByKey returns nil, nil when the key has not been used.
func (r *repository) FindByKey(ctx context.Context, userID uuid.UUID, key string) (*models.LedgerOperation, error) {
	var op models.LedgerOperation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *repository) Record(ctx context.Context, op *models.LedgerOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// PurgeBefore drops operation records older than cutoff.
func (r *repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.LedgerOperation{})
	return res.RowsAffected, res.Error
}
