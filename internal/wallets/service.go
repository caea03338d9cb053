package wallets

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

// Service exposes read-only balance queries to the API. Mutations go
// through the ledger coordinator.
type Service interface {
	GetBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
}

type service struct {
	repo Repository
}

// NewService wires a wallet query service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error) {
	return s.repo.GetBalance(ctx, key)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, enums.ScopeActive)
}
