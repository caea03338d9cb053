package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/payloads"
)

// OpenP2PTrade moves the seller's amount into escrow. The platform fee is
// fixed now and taken from the buyer's side on release.
func (s *service) OpenP2PTrade(ctx context.Context, input OpenP2PTradeInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	feePct := s.settings.Decimal(settings.KeyP2PFeePercent, decimal.Zero)

	op := operation{name: OpOpenP2PTrade, userID: input.SellerID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		key := models.NewWalletKey(input.SellerID, input.Currency, input.WalletType)
		current, err := u.wallets.GetForUpdate(ctx, key)
		if err != nil {
			return nil, err
		}
		wallet, err := u.wallets.Debit(ctx, key, input.Amount)
		if err != nil {
			return nil, err
		}

		trade := &models.P2PTrade{
			ID:           uuid.New(),
			SellerID:     input.SellerID,
			BuyerID:      input.BuyerID,
			Currency:     key.Currency,
			WalletType:   key.Type,
			Amount:       input.Amount,
			Price:        input.Price,
			FiatCurrency: strings.ToUpper(strings.TrimSpace(input.FiatCurrency)),
			Fee:          percentOf(input.Amount, feePct, current.Decimals),
			Status:       enums.P2PTradeStatusPending,
		}
		escrow, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeP2PEscrow,
			status:      enums.TransactionStatusPending,
			amount:      input.Amount,
			fee:         decimal.Zero,
			reference:   trade.ID,
			description: "P2P escrow",
		})
		if err != nil {
			return nil, err
		}
		trade.EscrowTransactionID = &escrow.ID
		if err := u.trades.Create(ctx, trade); err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, tradeEvent(enums.EventP2PTradeOpened, trade, escrow, input.SellerID, false)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: escrow.ID, NewBalance: wallet.Balance, EntityID: trade.ID, EntityStatus: string(trade.Status)}, nil
	})
}

// MarkP2PTradePaid records the buyer's claim of off-platform payment.
func (s *service) MarkP2PTradePaid(ctx context.Context, input P2PTradeActionInput) (*Result, error) {
	return s.tradeStatusOnly(ctx, OpMarkP2PTradePaid, input, enums.P2PTradeStatusPaid, func(trade *models.P2PTrade) error {
		if trade.BuyerID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can mark the trade paid")
		}
		return nil
	})
}

// DisputeP2PTrade freezes the trade until an admin releases or cancels it.
func (s *service) DisputeP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error) {
	return s.tradeStatusOnly(ctx, OpDisputeP2PTrade, input, enums.P2PTradeStatusDisputed, func(trade *models.P2PTrade) error {
		if !trade.IsParty(input.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only a trade party can open a dispute")
		}
		return nil
	})
}

func (s *service) tradeStatusOnly(ctx context.Context, name string, input P2PTradeActionInput, next enums.P2PTradeStatus, authorize func(*models.P2PTrade) error) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: name, userID: input.UserID, entityID: input.TradeID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		trade, err := s.lockTrade(ctx, u, input)
		if err != nil {
			return nil, err
		}
		if err := authorize(trade); err != nil {
			return nil, err
		}
		if trade.Status == next {
			return &Result{EntityID: trade.ID, EntityStatus: string(trade.Status), NewBalance: decimal.Zero, Replayed: true}, nil
		}
		if !trade.Status.CanTransitionTo(next) {
			return nil, tradeTransitionError(trade, next)
		}

		if next == enums.P2PTradeStatusPaid {
			paidAt := u.now
			trade.PaidAt = &paidAt
		}
		trade.Status = next
		if err := u.trades.Update(ctx, trade); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, tradeEvent(enums.EventP2PTradeStatusChange, trade, nil, input.UserID, input.Admin)); err != nil {
			return nil, err
		}
		return &Result{EntityID: trade.ID, EntityStatus: string(trade.Status), NewBalance: decimal.Zero}, nil
	})
}

// ReleaseP2PTrade settles the escrow to the buyer, less the platform fee.
// The seller confirms receipt of payment; an admin may release a disputed
// trade.
func (s *service) ReleaseP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: OpReleaseP2PTrade, userID: input.UserID, entityID: input.TradeID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		trade, err := s.lockTrade(ctx, u, input)
		if err != nil {
			return nil, err
		}
		if !input.Admin && trade.SellerID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can release the escrow")
		}
		buyerKey := models.NewWalletKey(trade.BuyerID, trade.Currency, trade.WalletType)
		if trade.Status == enums.P2PTradeStatusCompleted {
			wallet, err := u.ownerBalance(ctx, buyerKey)
			if err != nil {
				return nil, err
			}
			payout, err := u.findLatest(ctx, trade.ID, enums.TransactionTypeP2PTrade)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(payout), NewBalance: wallet.Balance, EntityID: trade.ID, EntityStatus: string(trade.Status), Replayed: true}, nil
		}
		if !trade.Status.CanTransitionTo(enums.P2PTradeStatusCompleted) {
			return nil, tradeTransitionError(trade, enums.P2PTradeStatusCompleted)
		}
		if trade.Status == enums.P2PTradeStatusDisputed && !input.Admin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "disputed trades are resolved by an admin")
		}

		decimals := s.precision
		if seller, err := u.wallets.GetBalance(ctx, models.NewWalletKey(trade.SellerID, trade.Currency, trade.WalletType)); err == nil {
			decimals = seller.Decimals
		} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		if _, err := u.wallets.Ensure(ctx, buyerKey, decimals); err != nil {
			return nil, err
		}

		net := trade.Amount.Sub(trade.Fee)
		if net.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "trade fee consumes the whole amount").
				WithDetails(map[string]any{"tradeId": trade.ID.String()})
		}
		wallet, err := u.wallets.Credit(ctx, buyerKey, net)
		if err != nil {
			return nil, err
		}
		payout, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeP2PTrade,
			status:      enums.TransactionStatusCompleted,
			amount:      net,
			fee:         trade.Fee,
			reference:   trade.ID,
			description: "P2P trade settled",
			metadata:    map[string]any{"sellerId": trade.SellerID.String()},
		})
		if err != nil {
			return nil, err
		}
		if err := s.collectFee(ctx, u, buyerKey.Currency, decimals, trade.Fee, trade.ID, payout.Type); err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, trade.ID, enums.TransactionTypeP2PEscrow, enums.TransactionStatusReleased); err != nil {
			return nil, err
		}

		completedAt := u.now
		trade.Status = enums.P2PTradeStatusCompleted
		trade.CompletedAt = &completedAt
		if err := u.trades.Update(ctx, trade); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, tradeEvent(enums.EventP2PTradeReleased, trade, payout, input.UserID, input.Admin)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: payout.ID, NewBalance: wallet.Balance, EntityID: trade.ID, EntityStatus: string(trade.Status)}, nil
	})
}

// CancelP2PTrade refunds the escrow to the seller. A pending trade can be
// cancelled by either party, a disputed one only by an admin.
func (s *service) CancelP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: OpCancelP2PTrade, userID: input.UserID, entityID: input.TradeID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		trade, err := s.lockTrade(ctx, u, input)
		if err != nil {
			return nil, err
		}
		sellerKey := models.NewWalletKey(trade.SellerID, trade.Currency, trade.WalletType)
		if trade.Status == enums.P2PTradeStatusCancelled {
			wallet, err := u.ownerBalance(ctx, sellerKey)
			if err != nil {
				return nil, err
			}
			refund, err := u.findLatest(ctx, trade.ID, enums.TransactionTypeP2PRefund)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(refund), NewBalance: wallet.Balance, EntityID: trade.ID, EntityStatus: string(trade.Status), Replayed: true}, nil
		}
		if !trade.Status.CanTransitionTo(enums.P2PTradeStatusCancelled) {
			return nil, tradeTransitionError(trade, enums.P2PTradeStatusCancelled)
		}
		if trade.Status == enums.P2PTradeStatusDisputed && !input.Admin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "disputed trades are resolved by an admin")
		}

		wallet, err := u.creditOwner(ctx, sellerKey, trade.Amount)
		if err != nil {
			return nil, err
		}
		refund, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeP2PRefund,
			status:      enums.TransactionStatusCompleted,
			amount:      trade.Amount,
			fee:         decimal.Zero,
			reference:   trade.ID,
			description: "P2P trade cancelled",
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, trade.ID, enums.TransactionTypeP2PEscrow, enums.TransactionStatusRejected); err != nil {
			return nil, err
		}

		cancelledAt := u.now
		trade.Status = enums.P2PTradeStatusCancelled
		trade.CancelledAt = &cancelledAt
		if err := u.trades.Update(ctx, trade); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, tradeEvent(enums.EventP2PTradeCancelled, trade, refund, input.UserID, input.Admin)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: refund.ID, NewBalance: wallet.Balance, EntityID: trade.ID, EntityStatus: string(trade.Status)}, nil
	})
}

// lockTrade loads the trade under lock. Non-parties get Forbidden unless the
// caller acts as admin.
func (s *service) lockTrade(ctx context.Context, u *unit, input P2PTradeActionInput) (*models.P2PTrade, error) {
	trade, err := u.trades.FindByIDForUpdate(ctx, input.TradeID)
	if err != nil {
		return nil, err
	}
	if !input.Admin && !trade.IsParty(input.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "trade belongs to other users")
	}
	return trade, nil
}

func tradeTransitionError(trade *models.P2PTrade, next enums.P2PTradeStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "trade cannot move from %s to %s", trade.Status, next).
		WithDetails(map[string]any{"status": trade.Status, "target": next})
}

func tradeEvent(eventType enums.OutboxEventType, trade *models.P2PTrade, txn *models.Transaction, actorID uuid.UUID, admin bool) outbox.DomainEvent {
	role := enums.RoleUser
	if admin {
		role = enums.RoleAdmin
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateP2PTrade,
		AggregateID:   trade.ID,
		Actor:         actor(actorID, role),
		Data: payloads.P2PTradeEvent{
			TradeID:       trade.ID,
			SellerID:      trade.SellerID,
			BuyerID:       trade.BuyerID,
			Currency:      trade.Currency,
			Amount:        trade.Amount,
			Fee:           trade.Fee,
			Status:        trade.Status,
			TransactionID: txIDPtr(txn),
		},
	}
}
