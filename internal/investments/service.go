package investments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Service answers investment queries. Money-moving calls go through the
// ledger coordinator.
type Service interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Investment, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Investment], error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("investment repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Investment, error) {
	inv, err := s.repo.FindByID(ctx, id, enums.ScopeIncludeDeleted)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "investment belongs to another user")
	}
	return inv, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Investment], error) {
	return s.repo.ListByUser(ctx, userID, params)
}
