package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/payloads"
)

const (
	defaultBinaryMinDuration   = 30 * time.Second
	defaultBinaryMaxDuration   = 24 * time.Hour
	defaultBinaryPayoutPercent = "85"
)

// PlaceBinaryOrder stakes amount on the direction of symbol until the
// order closes. The entry price is read before the atomic unit opens so no
// row lock is held across the market call.
func (s *service) PlaceBinaryOrder(ctx context.Context, input PlaceBinaryOrderInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	symbol, err := market.NormalizeSymbol(input.Symbol)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		_, quote, err := market.SplitSymbol(symbol)
		if err != nil {
			return nil, err
		}
		currency = quote
	}

	minDur := s.settings.Duration(settings.KeyBinaryMinDuration, defaultBinaryMinDuration)
	maxDur := s.settings.Duration(settings.KeyBinaryMaxDuration, defaultBinaryMaxDuration)
	if input.Duration < minDur || input.Duration > maxDur {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration outside allowed range").
			WithDetails(map[string]any{"min": minDur.String(), "max": maxDur.String()})
	}
	payoutPct := s.settings.Decimal(settings.KeyBinaryPayoutPercent, decimal.RequireFromString(defaultBinaryPayoutPercent))

	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "operation cancelled before it started")
	}
	ticker, err := s.market.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if ticker.LastPrice.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "market returned no price").
			WithDetails(map[string]any{"symbol": symbol})
	}

	op := operation{name: OpPlaceBinaryOrder, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		key := models.NewWalletKey(input.UserID, currency, input.WalletType)
		wallet, err := u.wallets.Debit(ctx, key, input.Amount)
		if err != nil {
			return nil, err
		}

		order := &models.BinaryOrder{
			ID:            uuid.New(),
			UserID:        input.UserID,
			Symbol:        symbol,
			Currency:      key.Currency,
			WalletType:    key.Type,
			Side:          input.Side,
			Amount:        input.Amount,
			PayoutPercent: payoutPct,
			EntryPrice:    ticker.LastPrice,
			Status:        enums.BinaryOrderStatusPending,
			ClosedAt:      u.now.Add(input.Duration),
		}
		if err := u.binaries.Create(ctx, order); err != nil {
			return nil, err
		}
		stake, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeBinaryOrder,
			status:      enums.TransactionStatusPending,
			amount:      input.Amount,
			fee:         decimal.Zero,
			reference:   order.ID,
			description: "binary order " + symbol,
		})
		if err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, binaryEvent(enums.EventBinaryOrderPlaced, order, stake, decimal.Zero)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: stake.ID, NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

// CancelBinaryOrder refunds the stake of an order that has not closed yet.
func (s *service) CancelBinaryOrder(ctx context.Context, input EntityActionInput) (*Result, error) {
	if err := input.validate("orderId"); err != nil {
		return nil, err
	}

	op := operation{name: OpCancelBinaryOrder, userID: input.UserID, entityID: input.EntityID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		order, err := u.binaries.FindByIDForUpdate(ctx, input.EntityID)
		if err != nil {
			return nil, err
		}
		if order.UserID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		key := models.NewWalletKey(order.UserID, order.Currency, order.WalletType)

		switch {
		case order.Status == enums.BinaryOrderStatusCancelled:
			wallet, err := u.ownerBalance(ctx, key)
			if err != nil {
				return nil, err
			}
			refund, err := u.findLatest(ctx, order.ID, enums.TransactionTypeBinaryOrderRefund)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(refund), NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status), Replayed: true}, nil
		case order.Status.IsTerminal():
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "order already settled as %s", order.Status)
		case !u.now.Before(order.ClosedAt):
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order has already closed").
				WithDetails(map[string]any{"closedAt": order.ClosedAt})
		}

		wallet, err := u.creditOwner(ctx, key, order.Amount)
		if err != nil {
			return nil, err
		}
		refund, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeBinaryOrderRefund,
			status:      enums.TransactionStatusCompleted,
			amount:      order.Amount,
			fee:         decimal.Zero,
			reference:   order.ID,
			description: "binary order cancelled",
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, order.ID, enums.TransactionTypeBinaryOrder, enums.TransactionStatusRejected); err != nil {
			return nil, err
		}

		settledAt := u.now
		order.Status = enums.BinaryOrderStatusCancelled
		order.SettledAt = &settledAt
		if err := u.binaries.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, binaryEvent(enums.EventBinaryOrderCancelled, order, refund, order.Amount)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: refund.ID, NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

// SettleBinaryOrder resolves an expired order against the current market
// price. WIN pays stake plus payout, DRAW returns the stake and LOSS keeps
// it.
func (s *service) SettleBinaryOrder(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "operation cancelled before it started")
	}

	snapshot, err := s.binaries.FindByID(ctx, orderID, enums.ScopeIncludeDeleted)
	if err != nil {
		return nil, err
	}
	var closePrice decimal.Decimal
	if snapshot.Status == enums.BinaryOrderStatusPending {
		ticker, err := s.market.FetchTicker(ctx, snapshot.Symbol)
		if err != nil {
			return nil, err
		}
		if ticker.LastPrice.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "market returned no price").
				WithDetails(map[string]any{"symbol": snapshot.Symbol})
		}
		closePrice = ticker.LastPrice
	}

	op := operation{name: OpSettleBinaryOrder, entityID: orderID}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		order, err := u.binaries.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return nil, err
		}
		key := models.NewWalletKey(order.UserID, order.Currency, order.WalletType)

		if order.Status.IsTerminal() {
			wallet, err := u.ownerBalance(ctx, key)
			if err != nil {
				return nil, err
			}
			return &Result{NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status), Replayed: true}, nil
		}
		if u.now.Before(order.ClosedAt) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order has not closed yet").
				WithDetails(map[string]any{"closedAt": order.ClosedAt})
		}

		outcome := binaryOutcome(order.Side, order.EntryPrice, closePrice)
		var (
			wallet *models.Wallet
			payout decimal.Decimal
			txn    *models.Transaction
		)
		switch outcome {
		case enums.BinaryOrderStatusWin:
			current, err := u.wallets.GetForUpdate(ctx, key)
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, integrityError(key, "wallet missing for binary payout")
			}
			if err != nil {
				return nil, err
			}
			payout = order.Amount.Add(percentOf(order.Amount, order.PayoutPercent, current.Decimals))
			if wallet, err = u.creditOwner(ctx, key, payout); err != nil {
				return nil, err
			}
			if txn, err = u.append(ctx, entry{
				wallet:      wallet,
				txType:      enums.TransactionTypeBinaryOrderPayout,
				status:      enums.TransactionStatusCompleted,
				amount:      payout,
				fee:         decimal.Zero,
				reference:   order.ID,
				description: "binary order won",
			}); err != nil {
				return nil, err
			}
		case enums.BinaryOrderStatusDraw:
			payout = order.Amount
			if wallet, err = u.creditOwner(ctx, key, payout); err != nil {
				return nil, err
			}
			if txn, err = u.append(ctx, entry{
				wallet:      wallet,
				txType:      enums.TransactionTypeBinaryOrderRefund,
				status:      enums.TransactionStatusCompleted,
				amount:      payout,
				fee:         decimal.Zero,
				reference:   order.ID,
				description: "binary order draw",
			}); err != nil {
				return nil, err
			}
		default:
			if wallet, err = u.ownerBalance(ctx, key); err != nil {
				return nil, err
			}
		}

		stake, err := s.settlePending(ctx, u, order.ID, enums.TransactionTypeBinaryOrder, enums.TransactionStatusCompleted)
		if err != nil {
			return nil, err
		}
		if txn == nil {
			txn = stake
		}

		settledAt := u.now
		order.Status = outcome
		order.ClosePrice = decimal.NewNullDecimal(closePrice)
		order.SettledAt = &settledAt
		if err := u.binaries.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, binaryEvent(enums.EventBinaryOrderSettled, order, txn, payout)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: txID(txn), NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

func binaryOutcome(side enums.BinaryOrderSide, entryPrice, closePrice decimal.Decimal) enums.BinaryOrderStatus {
	switch cmp := closePrice.Cmp(entryPrice); {
	case cmp == 0:
		return enums.BinaryOrderStatusDraw
	case (cmp > 0) == (side == enums.BinaryOrderSideRise):
		return enums.BinaryOrderStatusWin
	default:
		return enums.BinaryOrderStatusLoss
	}
}

func binaryEvent(eventType enums.OutboxEventType, order *models.BinaryOrder, txn *models.Transaction, payout decimal.Decimal) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBinaryOrder,
		AggregateID:   order.ID,
		Actor:         actor(order.UserID, enums.RoleUser),
		Data: payloads.BinaryOrderEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			Symbol:        order.Symbol,
			Side:          order.Side,
			Amount:        order.Amount,
			EntryPrice:    order.EntryPrice,
			ClosePrice:    order.ClosePrice,
			Payout:        payout,
			Status:        order.Status,
			ClosedAt:      order.ClosedAt,
			TransactionID: txID(txn),
		},
	}
}
