package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/payloads"
)

const (
	defaultInvestmentDuration = 30 * 24 * time.Hour
	defaultInvestmentROI      = "5"
)

func (s *service) CreateInvestment(ctx context.Context, input CreateInvestmentInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if minimum := s.settings.Decimal(settings.KeyInvestmentMinAmount, decimal.Zero); input.Amount.LessThan(minimum) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount below plan minimum").
			WithDetails(map[string]any{"minimum": minimum.String()})
	}
	duration := s.settings.Duration(settings.KeyInvestmentDuration, defaultInvestmentDuration)
	roi := s.settings.Decimal(settings.KeyInvestmentROIPercent, decimal.RequireFromString(defaultInvestmentROI))

	op := operation{name: OpCreateInvestment, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		key := models.NewWalletKey(input.UserID, input.Currency, input.WalletType)
		wallet, err := u.wallets.Debit(ctx, key, input.Amount)
		if err != nil {
			return nil, err
		}

		inv := &models.Investment{
			ID:            uuid.New(),
			UserID:        input.UserID,
			Plan:          strings.TrimSpace(input.Plan),
			Currency:      key.Currency,
			WalletType:    key.Type,
			Amount:        input.Amount,
			ProfitPercent: roi,
			Status:        enums.InvestmentStatusActive,
			MaturesAt:     u.now.Add(duration),
		}
		if err := u.invs.Create(ctx, inv); err != nil {
			return nil, err
		}

		txn, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeInvestment,
			status:      enums.TransactionStatusPending,
			amount:      input.Amount,
			fee:         decimal.Zero,
			reference:   inv.ID,
			description: "AI investment " + inv.Plan,
		})
		if err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, investmentEvent(enums.EventInvestmentCreated, inv, txn, wallet.Balance, decimal.Zero)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: txn.ID, NewBalance: wallet.Balance, EntityID: inv.ID, EntityStatus: string(inv.Status)}, nil
	})
}

// CancelInvestment refunds the locked amount exactly once. Cancelling an
// already cancelled investment reports the original refund without moving
// money again.
func (s *service) CancelInvestment(ctx context.Context, input CancelInvestmentInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: OpCancelInvestment, userID: input.UserID, entityID: input.InvestmentID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		inv, err := u.invs.FindByIDForUpdate(ctx, input.InvestmentID)
		if err != nil {
			return nil, err
		}
		if inv.UserID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "investment belongs to another user")
		}
		key := models.NewWalletKey(inv.UserID, inv.Currency, inv.WalletType)

		switch inv.Status {
		case enums.InvestmentStatusCancelled:
			wallet, err := u.ownerBalance(ctx, key)
			if err != nil {
				return nil, err
			}
			refund, err := u.findLatest(ctx, inv.ID, enums.TransactionTypeInvestmentRefund)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(refund), NewBalance: wallet.Balance, EntityID: inv.ID, EntityStatus: string(inv.Status), Replayed: true}, nil
		case enums.InvestmentStatusActive:
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "investment is %s", inv.Status).
				WithDetails(map[string]any{"status": inv.Status})
		}

		wallet, err := u.creditOwner(ctx, key, inv.Amount)
		if err != nil {
			return nil, err
		}
		refund, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeInvestmentRefund,
			status:      enums.TransactionStatusCompleted,
			amount:      inv.Amount,
			fee:         decimal.Zero,
			reference:   inv.ID,
			description: "AI investment cancelled",
		})
		if err != nil {
			return nil, err
		}

		original, err := s.settlePending(ctx, u, inv.ID, enums.TransactionTypeInvestment, enums.TransactionStatusRejected)
		if err != nil {
			return nil, err
		}
		if err := u.txns.SoftDelete(ctx, original.ID); err != nil {
			return nil, err
		}

		cancelledAt := u.now
		inv.Status = enums.InvestmentStatusCancelled
		inv.State = enums.RecordStateDeleted
		inv.CancelledAt = &cancelledAt
		if err := u.invs.Update(ctx, inv); err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, investmentEvent(enums.EventInvestmentCancelled, inv, refund, wallet.Balance, decimal.Zero)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: refund.ID, NewBalance: wallet.Balance, EntityID: inv.ID, EntityStatus: string(inv.Status)}, nil
	})
}

// CompleteInvestment pays out principal plus profit for a matured
// investment. The maturity cron calls it; an already completed investment
// is a no-op.
func (s *service) CompleteInvestment(ctx context.Context, investmentID uuid.UUID) (*Result, error) {
	if investmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "investment id is required")
	}

	op := operation{name: OpCompleteInvestment, entityID: investmentID}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		inv, err := u.invs.FindByIDForUpdate(ctx, investmentID)
		if err != nil {
			return nil, err
		}
		key := models.NewWalletKey(inv.UserID, inv.Currency, inv.WalletType)

		switch inv.Status {
		case enums.InvestmentStatusCompleted:
			wallet, err := u.ownerBalance(ctx, key)
			if err != nil {
				return nil, err
			}
			payout, err := u.findLatest(ctx, inv.ID, enums.TransactionTypeInvestmentProfit)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(payout), NewBalance: wallet.Balance, EntityID: inv.ID, EntityStatus: string(inv.Status), Replayed: true}, nil
		case enums.InvestmentStatusActive:
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "investment is %s", inv.Status)
		}
		if u.now.Before(inv.MaturesAt) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "investment has not matured").
				WithDetails(map[string]any{"maturesAt": inv.MaturesAt})
		}

		current, err := u.wallets.GetForUpdate(ctx, key)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, integrityError(key, "wallet missing for investment payout")
		}
		if err != nil {
			return nil, err
		}
		profit := percentOf(inv.Amount, inv.ProfitPercent, current.Decimals)
		total := inv.Amount.Add(profit)

		wallet, err := u.creditOwner(ctx, key, total)
		if err != nil {
			return nil, err
		}
		payout, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeInvestmentProfit,
			status:      enums.TransactionStatusCompleted,
			amount:      total,
			fee:         decimal.Zero,
			reference:   inv.ID,
			description: "AI investment matured",
			metadata:    map[string]any{"principal": inv.Amount.String(), "profit": profit.String()},
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, inv.ID, enums.TransactionTypeInvestment, enums.TransactionStatusCompleted); err != nil {
			return nil, err
		}

		completedAt := u.now
		inv.Status = enums.InvestmentStatusCompleted
		inv.CompletedAt = &completedAt
		if err := u.invs.Update(ctx, inv); err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, investmentEvent(enums.EventInvestmentCompleted, inv, payout, wallet.Balance, profit)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: payout.ID, NewBalance: wallet.Balance, EntityID: inv.ID, EntityStatus: string(inv.Status)}, nil
	})
}

func investmentEvent(eventType enums.OutboxEventType, inv *models.Investment, txn *models.Transaction, balance, profit decimal.Decimal) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInvestment,
		AggregateID:   inv.ID,
		Actor:         actor(inv.UserID, enums.RoleUser),
		Data: payloads.InvestmentEvent{
			InvestmentID:  inv.ID,
			UserID:        inv.UserID,
			Plan:          inv.Plan,
			Currency:      inv.Currency,
			Amount:        inv.Amount,
			Profit:        profit,
			Status:        inv.Status,
			TransactionID: txn.ID,
			NewBalance:    balance,
		},
	}
}
