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

// Deposit credits a wallet from an external funding source, creating the
// wallet on first use.
func (s *service) Deposit(ctx context.Context, input DepositInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: OpDeposit, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		key := models.NewWalletKey(input.UserID, input.Currency, input.WalletType)
		if _, err := u.wallets.Ensure(ctx, key, s.precision); err != nil {
			return nil, err
		}
		wallet, err := u.wallets.Credit(ctx, key, input.Amount)
		if err != nil {
			return nil, err
		}

		var meta map[string]any
		if ref := strings.TrimSpace(input.Reference); ref != "" {
			meta = map[string]any{"reference": ref}
		}
		txn, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeDeposit,
			status:      enums.TransactionStatusCompleted,
			amount:      input.Amount,
			fee:         decimal.Zero,
			description: "deposit",
			metadata:    meta,
		})
		if err != nil {
			return nil, err
		}

		event := balanceEvent(enums.EventFundsDeposited, enums.AggregateWallet, wallet.ID, wallet, txn)
		if err := s.emit(ctx, u, event); err != nil {
			return nil, err
		}
		return &Result{TransactionID: txn.ID, NewBalance: wallet.Balance, EntityID: wallet.ID, EntityStatus: string(txn.Status)}, nil
	})
}

// RequestWithdrawal debits amount plus fee and leaves a PENDING WITHDRAW row
// for an admin to approve or reject.
func (s *service) RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if minimum := s.settings.Decimal(settings.KeyWithdrawalMinAmount, decimal.Zero); input.Amount.LessThan(minimum) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount below withdrawal minimum").
			WithDetails(map[string]any{"minimum": minimum.String()})
	}
	feePct := s.settings.Decimal(settings.KeyWithdrawalFeePercent, decimal.Zero)

	op := operation{name: OpRequestWithdrawal, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		key := models.NewWalletKey(input.UserID, input.Currency, input.WalletType)
		current, err := u.wallets.GetForUpdate(ctx, key)
		if err != nil {
			return nil, err
		}
		fee := percentOf(input.Amount, feePct, current.Decimals)

		wallet, err := u.wallets.Debit(ctx, key, input.Amount.Add(fee))
		if err != nil {
			return nil, err
		}
		txn, err := u.append(ctx, entry{
			wallet:      wallet,
			txType:      enums.TransactionTypeWithdraw,
			status:      enums.TransactionStatusPending,
			amount:      input.Amount,
			fee:         fee,
			description: "withdrawal",
			metadata:    map[string]any{"address": strings.TrimSpace(input.Address)},
		})
		if err != nil {
			return nil, err
		}

		event := balanceEvent(enums.EventWithdrawalRequested, enums.AggregateTransaction, txn.ID, wallet, txn)
		if err := s.emit(ctx, u, event); err != nil {
			return nil, err
		}
		return &Result{TransactionID: txn.ID, NewBalance: wallet.Balance, EntityID: txn.ID, EntityStatus: string(txn.Status)}, nil
	})
}

func (s *service) ApproveWithdrawal(ctx context.Context, input SettleWithdrawalInput) (*Result, error) {
	return s.settleWithdrawal(ctx, OpApproveWithdrawal, input, enums.TransactionStatusCompleted)
}

// RejectWithdrawal returns amount and fee to the wallet.
func (s *service) RejectWithdrawal(ctx context.Context, input SettleWithdrawalInput) (*Result, error) {
	return s.settleWithdrawal(ctx, OpRejectWithdrawal, input, enums.TransactionStatusRejected)
}

func (s *service) settleWithdrawal(ctx context.Context, name string, input SettleWithdrawalInput, status enums.TransactionStatus) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	op := operation{name: name, userID: input.ActorID, entityID: input.TransactionID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		txn, err := u.txns.FindByID(ctx, input.TransactionID, enums.ScopeActive)
		if err != nil {
			return nil, err
		}
		if txn.Type != enums.TransactionTypeWithdraw {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a withdrawal")
		}
		owner, err := u.wallets.FindByID(ctx, txn.WalletID, enums.ScopeIncludeDeleted)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "wallet missing for withdrawal").
				WithDetails(map[string]any{"transactionId": txn.ID.String()})
		}
		if err != nil {
			return nil, err
		}
		key := owner.Key()

		// Settle first: the conditional update is what stops a second
		// approve or reject from touching the balance.
		settled, err := u.txns.Settle(ctx, txn.ID, status)
		if err != nil {
			return nil, err
		}

		var wallet *models.Wallet
		if status == enums.TransactionStatusRejected {
			wallet, err = u.creditOwner(ctx, key, txn.Amount.Add(txn.Fee))
		} else {
			wallet, err = u.ownerBalance(ctx, key)
		}
		if err != nil {
			return nil, err
		}
		// The fee stays with the user until the withdrawal is final.
		if status == enums.TransactionStatusCompleted {
			if err := s.collectFee(ctx, u, key.Currency, owner.Decimals, txn.Fee, txn.ID, txn.Type); err != nil {
				return nil, err
			}
		}

		event := balanceEvent(enums.EventWithdrawalSettled, enums.AggregateTransaction, settled.ID, wallet, settled)
		event.Actor = actor(input.ActorID, enums.RoleAdmin)
		if err := s.emit(ctx, u, event); err != nil {
			return nil, err
		}
		return &Result{TransactionID: settled.ID, NewBalance: wallet.Balance, EntityID: settled.ID, EntityStatus: string(settled.Status)}, nil
	})
}

// Transfer moves funds between two wallets, possibly of different users.
// The sender pays the fee on top of the amount.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	feePct := s.settings.Decimal(settings.KeyTransferFeePercent, decimal.Zero)

	op := operation{name: OpTransfer, userID: input.UserID, key: input.IdempotencyKey, request: input}
	return s.run(ctx, op, func(ctx context.Context, u *unit) (*Result, error) {
		srcKey := models.NewWalletKey(input.UserID, input.Currency, input.FromType)
		dstKey := models.NewWalletKey(input.ToUserID, input.Currency, input.ToType)

		src, err := u.wallets.GetBalance(ctx, srcKey)
		if err != nil {
			return nil, err
		}
		if _, err := u.lockWallets(ctx,
			walletLock{key: srcKey},
			walletLock{key: dstKey, create: true, decimals: src.Decimals},
		); err != nil {
			return nil, err
		}

		fee := percentOf(input.Amount, feePct, src.Decimals)
		from, err := u.wallets.Debit(ctx, srcKey, input.Amount.Add(fee))
		if err != nil {
			return nil, err
		}
		to, err := u.wallets.Credit(ctx, dstKey, input.Amount)
		if err != nil {
			return nil, err
		}

		transferID := uuid.New()
		outgoing, err := u.append(ctx, entry{
			wallet:      from,
			txType:      enums.TransactionTypeOutgoingTransfer,
			status:      enums.TransactionStatusCompleted,
			amount:      input.Amount,
			fee:         fee,
			reference:   transferID,
			description: "transfer out",
			metadata:    map[string]any{"counterpartyUserId": input.ToUserID.String(), "walletType": input.ToType},
		})
		if err != nil {
			return nil, err
		}
		incoming, err := u.append(ctx, entry{
			wallet:      to,
			txType:      enums.TransactionTypeIncomingTransfer,
			status:      enums.TransactionStatusCompleted,
			amount:      input.Amount,
			fee:         decimal.Zero,
			reference:   transferID,
			description: "transfer in",
			metadata:    map[string]any{"counterpartyUserId": input.UserID.String(), "walletType": input.FromType},
		})
		if err != nil {
			return nil, err
		}
		if err := s.collectFee(ctx, u, srcKey.Currency, src.Decimals, fee, transferID, outgoing.Type); err != nil {
			return nil, err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventFundsTransferred,
			AggregateType: enums.AggregateWallet,
			AggregateID:   from.ID,
			Actor:         actor(input.UserID, enums.RoleUser),
			Data: payloads.FundsTransferredEvent{
				FromUserID:            input.UserID,
				ToUserID:              input.ToUserID,
				FromWalletType:        input.FromType,
				ToWalletType:          input.ToType,
				Currency:              srcKey.Currency,
				Amount:                input.Amount,
				Fee:                   fee,
				OutgoingTransactionID: outgoing.ID,
				IncomingTransactionID: incoming.ID,
			},
		}
		if err := s.emit(ctx, u, event); err != nil {
			return nil, err
		}
		return &Result{TransactionID: outgoing.ID, NewBalance: from.Balance, EntityID: transferID, EntityStatus: string(outgoing.Status)}, nil
	})
}

func balanceEvent(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, wallet *models.Wallet, txn *models.Transaction) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Actor:         actor(wallet.UserID, enums.RoleUser),
		Data: payloads.BalanceMovedEvent{
			TransactionID: txn.ID,
			UserID:        wallet.UserID,
			WalletType:    wallet.Type,
			Currency:      wallet.Currency,
			Amount:        txn.Amount,
			Fee:           txn.Fee,
			Status:        txn.Status,
			NewBalance:    wallet.Balance,
		},
	}
}
