package exchange

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Repository persists spot exchange orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.ExchangeOrder) error
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.ExchangeOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeOrder, error)
	Update(ctx context.Context, order *models.ExchangeOrder) error
	ListByUser(ctx context.Context, userID uuid.UUID, status enums.ExchangeOrderStatus, params pagination.Params) (pagination.Page[models.ExchangeOrder], error)
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

func (r *repository) Create(ctx context.Context, order *models.ExchangeOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.ExchangeOrder, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}
	return first(q)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeOrder, error) {
	return first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func first(q *gorm.DB) (*models.ExchangeOrder, error) {
	var order models.ExchangeOrder
	err := q.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "exchange order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, order *models.ExchangeOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, status enums.ExchangeOrderStatus, params pagination.Params) (pagination.Page[models.ExchangeOrder], error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return pagination.Find(q, params, func(o models.ExchangeOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}
