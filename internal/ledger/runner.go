package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
)

// operation describes one coordinator call for the runner.
type operation struct {
	name     string
	userID   uuid.UUID
	entityID uuid.UUID
	key      string
	request  any
}

type body func(ctx context.Context, u *unit) (*Result, error)

// run executes fn as a single atomic unit. Caller cancellation is honoured
// only up to the moment the unit opens; after that the unit runs on a
// detached context bounded by the operation timeout, so a timeout always
// means rollback.
func (s *service) run(ctx context.Context, op operation, fn body) (*Result, error) {
	start := s.now()
	ctx = s.logg.WithOperation(ctx, op.name)
	if op.userID != uuid.Nil {
		ctx = s.logg.WithUserID(ctx, op.userID.String())
	}
	if op.entityID != uuid.Nil {
		ctx = s.logg.WithField(ctx, "entity_id", op.entityID.String())
	}

	res, err := s.execute(ctx, op, fn)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.logFailure(ctx, err)
		s.metrics.Observe(op.name, metrics.OutcomeError, string(pkgerrors.CodeOf(err)), elapsed)
		return nil, err
	}

	outcome := metrics.OutcomeSuccess
	if res.Replayed {
		outcome = metrics.OutcomeReplay
	}
	s.metrics.Observe(op.name, outcome, "", elapsed)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_id": res.TransactionID.String(),
		"entity_status":  res.EntityStatus,
		"new_balance":    res.NewBalance.String(),
		"replayed":       res.Replayed,
	}), "ledger operation committed")
	return res, nil
}

func (s *service) execute(ctx context.Context, op operation, fn body) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "operation cancelled before it started")
	}

	var hash string
	if op.key != "" {
		var err error
		if hash, err = requestHash(op.name, op.request); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash request")
		}
	}

	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var result *Result
	err := s.db.WithTx(unitCtx, func(tx *gorm.DB) error {
		u := s.newUnit(tx)

		if op.key != "" {
			prior, err := u.ops.FindByKey(unitCtx, op.userID, op.key)
			if err != nil {
				return err
			}
			if prior != nil {
				if prior.Operation != op.name || prior.RequestHash != hash {
					return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request").
						WithDetails(map[string]any{"operation": prior.Operation})
				}
				result = resultFromRecord(prior)
				return nil
			}
		}

		res, err := fn(unitCtx, u)
		if err != nil {
			return err
		}

		if op.key != "" {
			if err := u.ops.Record(unitCtx, recordFromResult(op, hash, res)); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return result, nil
}

func (s *service) logFailure(ctx context.Context, err error) {
	ctx = s.logg.WithField(ctx, "error_code", string(pkgerrors.CodeOf(err)))
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeIntegrity, pkgerrors.CodeInternal:
		s.logg.Error(ctx, "ledger operation failed", err)
	case pkgerrors.CodeConflict, pkgerrors.CodeDependency:
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "ledger operation rolled back")
	default:
		s.logg.Info(s.logg.WithField(ctx, "error", err.Error()), "ledger operation rejected")
	}
}

// translateStoreError maps raw store failures onto the error taxonomy. Typed
// errors raised by the operation itself pass through unchanged.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case db.IsContention(err):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent ledger update; operation rolled back")
	case db.IsUnavailable(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger store unavailable; operation rolled back")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "operation already in progress")
	case db.IsCheckViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientFunds, err, "insufficient funds")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ledger operation failed")
	}
}

func requestHash(name string, request any) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(name+":"), raw...))
	return hex.EncodeToString(sum[:]), nil
}

func recordFromResult(op operation, hash string, res *Result) *models.LedgerOperation {
	rec := &models.LedgerOperation{
		UserID:         op.userID,
		IdempotencyKey: op.key,
		Operation:      op.name,
		RequestHash:    hash,
		NewBalance:     res.NewBalance,
		EntityStatus:   res.EntityStatus,
	}
	if res.EntityID != uuid.Nil {
		id := res.EntityID
		rec.EntityID = &id
	}
	if res.TransactionID != uuid.Nil {
		id := res.TransactionID
		rec.TransactionID = &id
	}
	return rec
}

func resultFromRecord(rec *models.LedgerOperation) *Result {
	res := &Result{
		NewBalance:   rec.NewBalance,
		EntityStatus: rec.EntityStatus,
		Replayed:     true,
	}
	if rec.EntityID != nil {
		res.EntityID = *rec.EntityID
	}
	if rec.TransactionID != nil {
		res.TransactionID = *rec.TransactionID
	}
	return res
}
