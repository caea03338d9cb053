package investments

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

// Repository persists AI investments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv *models.Investment) error
	FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Investment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Investment, error)
	Update(ctx context.Context, inv *models.Investment) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Investment], error)
	ListMatured(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.Investment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the investment repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, inv *models.Investment) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, scope enums.Scope) (*models.Investment, error) {
	q := r.db.WithContext(ctx)
	if scope == enums.ScopeActive {
		q = q.Where("state = ?", enums.RecordStateActive)
	}
	return first(q.Where("id = ?", id))
}

// FindByIDForUpdate locks the row, including soft-deleted ones, so a
// repeated cancel can observe the terminal state.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	return first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func first(q *gorm.DB) (*models.Investment, error) {
	var inv models.Investment
	err := q.First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "investment not found")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Update(ctx context.Context, inv *models.Investment) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Investment], error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	return pagination.Find(q, params, func(i models.Investment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: i.CreatedAt, ID: i.ID}
	})
}

// ListMatured returns ACTIVE investments whose maturity has passed, oldest
// first, leaving out the ids in exclude.
func (r *repository) ListMatured(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.Investment, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND state = ? AND matures_at <= ?", enums.InvestmentStatusActive, enums.RecordStateActive, now)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var rows []models.Investment
	if err := q.Order("matures_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
