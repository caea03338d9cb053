package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/pagination"
)

// Service answers transaction history queries for the API.
type Service interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, userID uuid.UUID, filter Filter, params pagination.Params) (pagination.Page[models.Transaction], error)
}

type service struct {
	repo Repository
}

// NewService wires the transaction query service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id, enums.ScopeActive)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another user")
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, filter Filter, params pagination.Params) (pagination.Page[models.Transaction], error) {
	if userID == uuid.Nil {
		return pagination.Page[models.Transaction]{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	filter.UserID = userID
	filter.Scope = enums.ScopeActive
	return s.repo.List(ctx, filter, params)
}
