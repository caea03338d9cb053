package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

const defaultSettleBatch = 100

// BinarySettleJobParams configure the binary order expiry job.
type BinarySettleJobParams struct {
	Logger    *logger.Logger
	Orders    expiredOrderReader
	Ledger    binarySettler
	BatchSize int
}

type expiredOrderReader interface {
	ListExpired(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.BinaryOrder, error)
}

type binarySettler interface {
	SettleBinaryOrder(ctx context.Context, orderID uuid.UUID) (*ledger.Result, error)
}

// NewBinarySettleJob builds the job that settles binary orders past their
// close time.
func NewBinarySettleJob(params BinarySettleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("binary order reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSettleBatch
	}
	return &binarySettleJob{
		logg:   params.Logger,
		orders: params.Orders,
		ledger: params.Ledger,
		batch:  batch,
		parked: newParkedSet(defaultParkBackoff, defaultMaxParkBackoff),
		now:    time.Now,
	}, nil
}

type binarySettleJob struct {
	logg   *logger.Logger
	orders expiredOrderReader
	ledger binarySettler
	batch  int
	parked *parkedSet
	now    func() time.Time
}

func (j *binarySettleJob) Name() string { return "binary-settle" }

func (j *binarySettleJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	parked := j.parked.active(now)
	expired, err := j.orders.ListExpired(ctx, now, j.batch, parked)
	if err != nil {
		return fmt.Errorf("list expired binary orders: %w", err)
	}

	var (
		errs    error
		settled int
		skipped int
	)
	for _, order := range expired {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		res, err := j.ledger.SettleBinaryOrder(ctx, order.ID)
		if err == nil || pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
			j.parked.clear(order.ID)
		}
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
			skipped++
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("settle binary order %s: %w", order.ID, err))
			j.park(ctx, order.ID, now, err)
		case res.Replayed:
			skipped++
		default:
			settled++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"settled":    settled,
		"skipped":    skipped,
		"parked":     len(parked),
		"failed":     len(multierr.Errors(errs)),
	}), "binary settlement loop complete")
	return errs
}

func (j *binarySettleJob) park(ctx context.Context, id uuid.UUID, now time.Time, err error) {
	failures, backoff := j.parked.fail(id, now, err)
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"order_id": id.String(),
		"failures": failures,
		"backoff":  backoff.String(),
		"error":    err.Error(),
	}), "binary order parked after failed settlement")
}
