package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

const defaultIdempotencyTTL = 24 * time.Hour

type operationPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdempotencyPurgeJobParams configure the ledger operation record cleanup.
type IdempotencyPurgeJobParams struct {
	Logger     *logger.Logger
	Operations operationPurger
	TTL        time.Duration
}

func NewIdempotencyPurgeJob(params IdempotencyPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Operations == nil {
		return nil, fmt.Errorf("operation repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &idempotencyPurgeJob{
		logg: params.Logger,
		ops:  params.Operations,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

type idempotencyPurgeJob struct {
	logg *logger.Logger
	ops  operationPurger
	ttl  time.Duration
	now  func() time.Time
}

func (j *idempotencyPurgeJob) Name() string { return "idempotency-purge" }

func (j *idempotencyPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	deleted, err := j.ops.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge ledger operations: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "idempotency records purged")
	return nil
}
