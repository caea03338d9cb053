package ledger

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/tradeledger-backend/pkg/db/types"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns amount * pct / 100 rounded down to places.
func percentOf(amount, pct decimal.Decimal, places int32) decimal.Decimal {
	if pct.Sign() <= 0 {
		return decimal.Zero
	}
	return amount.Mul(pct).Div(hundred).Truncate(places)
}

// entry is a ledger row to append for a wallet.
type entry struct {
	wallet      *models.Wallet
	txType      enums.TransactionType
	status      enums.TransactionStatus
	amount      decimal.Decimal
	fee         decimal.Decimal
	reference   uuid.UUID
	description string
	metadata    map[string]any
}

func (u *unit) append(ctx context.Context, e entry) (*models.Transaction, error) {
	txn := &models.Transaction{
		WalletID:    e.wallet.ID,
		UserID:      e.wallet.UserID,
		Type:        e.txType,
		Status:      e.status,
		Amount:      e.amount,
		Fee:         e.fee,
		Description: e.description,
	}
	if e.reference != uuid.Nil {
		ref := e.reference
		txn.ReferenceID = &ref
	}
	if len(e.metadata) > 0 {
		meta, err := dbtypes.NewJSONB(e.metadata)
		if err != nil {
			return nil, err
		}
		txn.Metadata = meta
	}
	if err := u.txns.Append(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// creditOwner returns funds to a wallet that must already exist. A missing
// wallet at this point means a refund would be lost, so it is reported as
// an integrity fault instead of being skipped.
func (u *unit) creditOwner(ctx context.Context, key models.WalletKey, amount decimal.Decimal) (*models.Wallet, error) {
	wallet, err := u.wallets.Credit(ctx, key, amount)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, integrityError(key, "wallet missing for compensating credit")
	}
	return wallet, err
}

// collectFee credits fee to the platform fee wallet of currency and records
// a PLATFORM_FEE row against reference, so every unit a user pays in fees
// lands on a balance. The fee wallet is locked after the caller's wallets,
// never before, which keeps lock order acyclic.
func (s *service) collectFee(ctx context.Context, u *unit, currency string, decimals int32, fee decimal.Decimal, reference uuid.UUID, source enums.TransactionType) error {
	if fee.Sign() <= 0 {
		return nil
	}
	key := models.NewWalletKey(s.feeOwner, currency, enums.WalletTypeSpot)
	if _, err := u.wallets.Ensure(ctx, key, decimals); err != nil {
		return err
	}
	wallet, err := u.wallets.Credit(ctx, key, fee)
	if err != nil {
		return err
	}
	_, err = u.append(ctx, entry{
		wallet:      wallet,
		txType:      enums.TransactionTypePlatformFee,
		status:      enums.TransactionStatusCompleted,
		amount:      fee,
		fee:         decimal.Zero,
		reference:   reference,
		description: "platform fee",
		metadata:    map[string]any{"source": source},
	})
	return err
}

// ownerBalance reads the wallet a status-only operation reports back.
func (u *unit) ownerBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error) {
	wallet, err := u.wallets.GetBalance(ctx, key)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, integrityError(key, "wallet missing for ledger entity")
	}
	return wallet, err
}

func integrityError(key models.WalletKey, msg string) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, msg).WithDetails(map[string]any{
		"userId":     key.UserID.String(),
		"currency":   key.Currency,
		"walletType": key.Type,
	})
}

// findPending returns the PENDING row of txType referencing entityID. A nil
// result means no such row exists.
func (u *unit) findPending(ctx context.Context, entityID uuid.UUID, txType enums.TransactionType) (*models.Transaction, error) {
	rows, err := u.txns.FindByReference(ctx, entityID, enums.ScopeActive)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Type == txType && rows[i].Status == enums.TransactionStatusPending {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// findLatest returns the newest row of txType referencing entityID.
func (u *unit) findLatest(ctx context.Context, entityID uuid.UUID, txType enums.TransactionType) (*models.Transaction, error) {
	rows, err := u.txns.FindByReference(ctx, entityID, enums.ScopeActive)
	if err != nil {
		return nil, err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Type == txType {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// settlePending moves the PENDING row written when entityID was opened to
// status. Every entity that reaches here wrote one, so its absence aborts the
// unit as INTEGRITY_ERROR instead of leaving a history that no longer sums.
func (s *service) settlePending(ctx context.Context, u *unit, entityID uuid.UUID, txType enums.TransactionType, status enums.TransactionStatus) (*models.Transaction, error) {
	pending, err := u.findPending(ctx, entityID, txType)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		err := pkgerrors.New(pkgerrors.CodeIntegrity, "pending ledger row missing").WithDetails(map[string]any{
			"referenceId":     entityID.String(),
			"transactionType": txType,
		})
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"reference_id":     entityID.String(),
			"transaction_type": txType,
		}), "no pending ledger row to settle", err)
		return nil, err
	}
	return u.txns.Settle(ctx, pending.ID, status)
}

// walletLock is one wallet an operation needs locked. Missing wallets are
// created when create is set.
type walletLock struct {
	key      models.WalletKey
	create   bool
	decimals int32
}

// lockWallets takes the row locks in a stable key order so two operations
// touching the same pair of wallets cannot deadlock.
func (u *unit) lockWallets(ctx context.Context, locks ...walletLock) (map[models.WalletKey]*models.Wallet, error) {
	sort.Slice(locks, func(i, j int) bool { return locks[i].key.Less(locks[j].key) })
	out := make(map[models.WalletKey]*models.Wallet, len(locks))
	for _, l := range locks {
		var (
			wallet *models.Wallet
			err    error
		)
		if l.create {
			wallet, err = u.wallets.Ensure(ctx, l.key, l.decimals)
		} else {
			wallet, err = u.wallets.GetForUpdate(ctx, l.key)
		}
		if err != nil {
			return nil, err
		}
		out[l.key] = wallet
	}
	return out, nil
}

func (s *service) emit(ctx context.Context, u *unit, event outbox.DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = u.now
	}
	return s.outbox.Emit(ctx, u.tx, event)
}

func actor(userID uuid.UUID, role enums.Role) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: string(role)}
}

func txIDPtr(txn *models.Transaction) *uuid.UUID {
	if txn == nil {
		return nil
	}
	id := txn.ID
	return &id
}

func txID(txn *models.Transaction) uuid.UUID {
	if txn == nil {
		return uuid.Nil
	}
	return txn.ID
}
