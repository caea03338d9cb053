package p2p

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

// Repository persists escrowed peer-to-peer trades.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, trade *models.P2PTrade) error
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.P2PTrade, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.P2PTrade, error)
	Update(ctx context.Context, trade *models.P2PTrade) error
	ListByParty(ctx context.Context, userID uuid.UUID, status enums.P2PTradeStatus, params pagination.Params) (pagination.Page[models.P2PTrade], error)
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

func (r *repository) Create(ctx context.Context, trade *models.P2PTrade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.P2PTrade, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}
	return first(q)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.P2PTrade, error) {
	return first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func first(q *gorm.DB) (*models.P2PTrade, error) {
	var trade models.P2PTrade
	err := q.First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "p2p trade not found")
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *repository) Update(ctx context.Context, trade *models.P2PTrade) error {
	return r.db.WithContext(ctx).Save(trade).Error
}

// ListByParty returns trades where userID is the buyer or the seller.
func (r *repository) ListByParty(ctx context.Context, userID uuid.UUID, status enums.P2PTradeStatus, params pagination.Params) (pagination.Page[models.P2PTrade], error) {
	q := r.db.WithContext(ctx).Where("(seller_id = ? OR buyer_id = ?)", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return pagination.Find(q, params, func(t models.P2PTrade) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
}
