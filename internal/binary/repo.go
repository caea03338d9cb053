package binary

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Repository persists binary option orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.BinaryOrder) error
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.BinaryOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BinaryOrder, error)
	Update(ctx context.Context, order *models.BinaryOrder) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.BinaryOrder], error)
	ListExpired(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.BinaryOrder, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.BinaryOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.BinaryOrder, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}
	return first(q)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BinaryOrder, error) {
	return first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func first(q *gorm.DB) (*models.BinaryOrder, error) {
	var order models.BinaryOrder
	err := q.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "binary order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, order *models.BinaryOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.BinaryOrder], error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	return pagination.Find(q, params, func(o models.BinaryOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}

// ListExpired returns PENDING orders whose close time has passed, oldest
// first, leaving out the ids in exclude.
func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.BinaryOrder, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND state = ? AND closed_at <= ?", enums.BinaryOrderStatusPending, enums.RecordStateActive, now)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var rows []models.BinaryOrder
	if err := q.Order("closed_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
