package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

type Service interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.ExchangeOrder, error)
	List(ctx context.Context, userID uuid.UUID, status enums.ExchangeOrderStatus, params pagination.Params) (pagination.Page[models.ExchangeOrder], error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("exchange order repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.ExchangeOrder, error) {
	order, err := s.repo.FindByID(ctx, id, enums.ScopeIncludeDeleted)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "exchange order belongs to another user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, status enums.ExchangeOrderStatus, params pagination.Params) (pagination.Page[models.ExchangeOrder], error) {
	if status != "" && !status.IsValid() {
		return pagination.Page[models.ExchangeOrder]{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	return s.repo.ListByUser(ctx, userID, status, params)
}
