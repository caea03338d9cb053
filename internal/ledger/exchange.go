package ledger

import (
	"context"

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

// PlaceExchangeOrder holds the funds an order can spend: quote currency for
// a BUY (amount x price, rounded up) and base currency for a SELL.
func (s *service) PlaceExchangeOrder(ctx context.Context, input PlaceExchangeOrderInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	symbol, err := market.NormalizeSymbol(input.Symbol)
	if err != nil {
		return nil, err
	}
	base, quote, err := market.SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}

	price := input.Price
	if input.Type == enums.OrderTypeMarket {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "operation cancelled before it started")
		}
		ticker, err := s.market.FetchTicker(ctx, symbol)
		if err != nil {
			return nil, err
		}
		price = marketPrice(ticker, input.Side)
		if price.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "market returned no price").
				WithDetails(map[string]any{"symbol": symbol})
		}
	}

	op := operation{name: OpPlaceExchangeOrder, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		order := &models.ExchangeOrder{
			ID:            uuid.New(),
			UserID:        input.UserID,
			Symbol:        symbol,
			BaseCurrency:  base,
			QuoteCurrency: quote,
			WalletType:    input.WalletType,
			Side:          input.Side,
			Type:          input.Type,
			Price:         price,
			Amount:        input.Amount,
			Fee:           decimal.Zero,
			Status:        enums.ExchangeOrderStatusOpen,
		}
		heldKey := models.NewWalletKey(input.UserID, order.HeldCurrency(), input.WalletType)
		current, err := u.wallets.GetForUpdate(ctx, heldKey)
		if err != nil {
			return nil, err
		}
		order.HeldAmount = input.Amount
		if input.Side == enums.OrderSideBuy {
			order.HeldAmount = input.Amount.Mul(price).RoundCeil(current.Decimals)
		}
		if order.HeldAmount.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "order value rounds to zero")
		}

		wallet, err := u.wallets.Debit(ctx, heldKey, order.HeldAmount)
		if err != nil {
			return nil, err
		}
		if err := u.exchanges.Create(ctx, order); err != nil {
			return nil, err
		}
		hold, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeExchangeOrder,
			status:      enums.TransactionStatusPending,
			amount:      order.HeldAmount,
			fee:         decimal.Zero,
			reference:   order.ID,
			description: string(order.Side) + " " + symbol,
		})
		if err != nil {
			return nil, err
		}

		if err := s.emit(ctx, u, exchangeEvent(enums.EventExchangeOrderPlaced, order, hold, enums.RoleUser)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: hold.ID, NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

// CancelExchangeOrder releases the hold of an open order.
func (s *service) CancelExchangeOrder(ctx context.Context, input EntityActionInput) (*Result, error) {
	if err := input.validate("orderId"); err != nil {
		return nil, err
	}

	op := operation{name: OpCancelExchangeOrder, userID: input.UserID, entityID: input.EntityID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		order, err := u.exchanges.FindByIDForUpdate(ctx, input.EntityID)
		if err != nil {
			return nil, err
		}
		if order.UserID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		heldKey := models.NewWalletKey(order.UserID, order.HeldCurrency(), order.WalletType)

		switch order.Status {
		case enums.ExchangeOrderStatusCancelled:
			wallet, err := u.ownerBalance(ctx, heldKey)
			if err != nil {
				return nil, err
			}
			refund, err := u.findLatest(ctx, order.ID, enums.TransactionTypeExchangeOrderRefund)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(refund), NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status), Replayed: true}, nil
		case enums.ExchangeOrderStatusClosed:
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order already filled")
		}

		wallet, err := u.creditOwner(ctx, heldKey, order.HeldAmount)
		if err != nil {
			return nil, err
		}
		refund, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeExchangeOrderRefund,
			status:      enums.TransactionStatusCompleted,
			amount:      order.HeldAmount,
			fee:         decimal.Zero,
			reference:   order.ID,
			description: "order cancelled",
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, order.ID, enums.TransactionTypeExchangeOrder, enums.TransactionStatusRejected); err != nil {
			return nil, err
		}

		cancelledAt := u.now
		order.Status = enums.ExchangeOrderStatusCancelled
		order.CancelledAt = &cancelledAt
		if err := u.exchanges.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, exchangeEvent(enums.EventExchangeOrderCancel, order, refund, enums.RoleUser)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: refund.ID, NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

// FillExchangeOrder settles an open order at the fill price. The buyer
// receives base currency less the fee and gets back any price improvement;
// the seller receives quote currency less the fee.
func (s *service) FillExchangeOrder(ctx context.Context, input FillExchangeOrderInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	feePct := s.settings.Decimal(settings.KeyExchangeFeePercent, decimal.Zero)

	op := operation{name: OpFillExchangeOrder, userID: input.ActorID, entityID: input.OrderID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		order, err := u.exchanges.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return nil, err
		}
		heldKey := models.NewWalletKey(order.UserID, order.HeldCurrency(), order.WalletType)
		receiveCurrency := order.QuoteCurrency
		if order.Side == enums.OrderSideBuy {
			receiveCurrency = order.BaseCurrency
		}
		receiveKey := models.NewWalletKey(order.UserID, receiveCurrency, order.WalletType)

		switch order.Status {
		case enums.ExchangeOrderStatusClosed:
			wallet, err := u.ownerBalance(ctx, receiveKey)
			if err != nil {
				return nil, err
			}
			fill, err := u.findLatest(ctx, order.ID, enums.TransactionTypeExchangeOrderFill)
			if err != nil {
				return nil, err
			}
			return &Result{TransactionID: txID(fill), NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status), Replayed: true}, nil
		case enums.ExchangeOrderStatusCancelled:
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order was cancelled")
		}

		fillPrice := input.FillPrice
		if fillPrice.Sign() == 0 {
			fillPrice = order.Price
		}
		if order.Type == enums.OrderTypeLimit {
			if (order.Side == enums.OrderSideBuy && fillPrice.GreaterThan(order.Price)) ||
				(order.Side == enums.OrderSideSell && fillPrice.LessThan(order.Price)) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "fill price violates the limit price").
					WithDetails(map[string]any{"limit": order.Price.String(), "fill": fillPrice.String()})
			}
		}

		locked, err := u.lockWallets(ctx,
			walletLock{key: heldKey},
			walletLock{key: receiveKey, create: true, decimals: s.precision},
		)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, integrityError(heldKey, "wallet missing for order hold")
		}
		if err != nil {
			return nil, err
		}
		heldWallet, receiveWallet := locked[heldKey], locked[receiveKey]

		var (
			received, fee decimal.Decimal
		)
		if order.Side == enums.OrderSideBuy {
			cost := order.Amount.Mul(fillPrice).RoundCeil(heldWallet.Decimals)
			if cost.GreaterThan(order.HeldAmount) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "fill cost exceeds held funds").
					WithDetails(map[string]any{"held": order.HeldAmount.String(), "cost": cost.String()})
			}
			if improvement := order.HeldAmount.Sub(cost); improvement.Sign() > 0 {
				back, err := u.wallets.Credit(ctx, heldKey, improvement)
				if err != nil {
					return nil, err
				}
				if _, err := u.append(ctx, entry{
					wallet:      back,
					txType:      enums.TransactionTypeExchangeOrderRefund,
					status:      enums.TransactionStatusCompleted,
					amount:      improvement,
					fee:         decimal.Zero,
					reference:   order.ID,
					description: "price improvement",
				}); err != nil {
					return nil, err
				}
			}
			fee = percentOf(order.Amount, feePct, receiveWallet.Decimals)
			received = order.Amount.Sub(fee)
		} else {
			proceeds := order.Amount.Mul(fillPrice).Truncate(receiveWallet.Decimals)
			fee = percentOf(proceeds, feePct, receiveWallet.Decimals)
			received = proceeds.Sub(fee)
		}
		if received.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "fill proceeds round to zero")
		}

		wallet, err := u.wallets.Credit(ctx, receiveKey, received)
		if err != nil {
			return nil, err
		}
		fill, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeExchangeOrderFill,
			status:      enums.TransactionStatusCompleted,
			amount:      received,
			fee:         fee,
			reference:   order.ID,
			description: "order filled",
			metadata:    map[string]any{"fillPrice": fillPrice.String()},
		})
		if err != nil {
			return nil, err
		}
		if err := s.collectFee(ctx, u, receiveKey.Currency, receiveWallet.Decimals, fee, order.ID, fill.Type); err != nil {
			return nil, err
		}
		if _, err := s.settlePending(ctx, u, order.ID, enums.TransactionTypeExchangeOrder, enums.TransactionStatusCompleted); err != nil {
			return nil, err
		}

		filledAt := u.now
		order.Status = enums.ExchangeOrderStatusClosed
		order.FillPrice = decimal.NewNullDecimal(fillPrice)
		order.Fee = fee
		order.FilledAt = &filledAt
		if err := u.exchanges.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, u, exchangeEvent(enums.EventExchangeOrderFilled, order, fill, enums.RoleAdmin)); err != nil {
			return nil, err
		}
		return &Result{TransactionID: fill.ID, NewBalance: wallet.Balance, EntityID: order.ID, EntityStatus: string(order.Status)}, nil
	})
}

func marketPrice(t *market.Ticker, side enums.OrderSide) decimal.Decimal {
	if side == enums.OrderSideBuy && t.AskPrice.Sign() > 0 {
		return t.AskPrice
	}
	if side == enums.OrderSideSell && t.BidPrice.Sign() > 0 {
		return t.BidPrice
	}
	return t.LastPrice
}

func exchangeEvent(eventType enums.OutboxEventType, order *models.ExchangeOrder, txn *models.Transaction, role enums.Role) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateExchangeOrder,
		AggregateID:   order.ID,
		Actor:         actor(order.UserID, role),
		Data: payloads.ExchangeOrderEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			Symbol:        order.Symbol,
			Side:          order.Side,
			Type:          order.Type,
			Price:         order.Price,
			Amount:        order.Amount,
			FillPrice:     order.FillPrice,
			Fee:           order.Fee,
			Status:        order.Status,
			TransactionID: txID(txn),
		},
	}
}
