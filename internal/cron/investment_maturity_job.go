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

// InvestmentMaturityJobParams configure the investment payout job.
type InvestmentMaturityJobParams struct {
	Logger      *logger.Logger
	Investments maturedInvestmentReader
	Ledger      investmentCompleter
	BatchSize   int
}

type maturedInvestmentReader interface {
	ListMatured(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]models.Investment, error)
}

type investmentCompleter interface {
	CompleteInvestment(ctx context.Context, investmentID uuid.UUID) (*ledger.Result, error)
}

func NewInvestmentMaturityJob(params InvestmentMaturityJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Investments == nil {
		return nil, fmt.Errorf("investment reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSettleBatch
	}
	return &investmentMaturityJob{
		logg:        params.Logger,
		investments: params.Investments,
		ledger:      params.Ledger,
		batch:       batch,
		parked:      newParkedSet(defaultParkBackoff, defaultMaxParkBackoff),
		now:         time.Now,
	}, nil
}

type investmentMaturityJob struct {
	logg        *logger.Logger
	investments maturedInvestmentReader
	ledger      investmentCompleter
	batch       int
	parked      *parkedSet
	now         func() time.Time
}

func (j *investmentMaturityJob) Name() string { return "investment-maturity" }

func (j *investmentMaturityJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	parked := j.parked.active(now)
	matured, err := j.investments.ListMatured(ctx, now, j.batch, parked)
	if err != nil {
		return fmt.Errorf("list matured investments: %w", err)
	}

	var (
		errs      error
		completed int
	)
	for _, inv := range matured {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		res, err := j.ledger.CompleteInvestment(ctx, inv.ID)
		if err != nil {
			// cancelled between listing and locking
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
				j.parked.clear(inv.ID)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("complete investment %s: %w", inv.ID, err))
			failures, backoff := j.parked.fail(inv.ID, now, err)
			j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
				"investment_id": inv.ID.String(),
				"failures":      failures,
				"backoff":       backoff.String(),
			}), "investment parked after failed payout")
			continue
		}
		j.parked.clear(inv.ID)
		if !res.Replayed {
			completed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(matured),
		"completed":  completed,
		"parked":     len(parked),
	}), "investment maturity loop complete")
	return errs
}
