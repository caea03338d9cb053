package p2p

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Service answers trade queries for either party.
type Service interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.P2PTrade, error)
	List(ctx context.Context, userID uuid.UUID, status enums.P2PTradeStatus, params pagination.Params) (pagination.Page[models.P2PTrade], error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("p2p repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.P2PTrade, error) {
	trade, err := s.repo.FindByID(ctx, id, enums.ScopeIncludeDeleted)
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this trade")
	}
	return trade, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, status enums.P2PTradeStatus, params pagination.Params) (pagination.Page[models.P2PTrade], error) {
	if status != "" && !status.IsValid() {
		return pagination.Page[models.P2PTrade]{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid trade status %q", status)
	}
	return s.repo.ListByParty(ctx, userID, status, params)
}
