package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	dlqRetentionDays    = 90
	outboxMinAttempts   = 10
	outboxBacklogWarn   = 1000
)

type outboxStore interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

type dlqStore interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxRetentionJobParams configure ledger event housekeeping. MinAttempts
// should match the publisher's attempt ceiling so parked rows, already
// copied to the DLQ, are trimmed with the published ones.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Outbox        outboxStore
	DLQ           dlqStore
	RetentionDays int
	DLQDays       int
	MinAttempts   int
	BacklogWarn   int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.DLQ == nil:
		return nil, fmt.Errorf("dlq repository required")
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		dlq:         params.DLQ,
		keep:        days(params.RetentionDays, outboxRetentionDays),
		keepDLQ:     days(params.DLQDays, dlqRetentionDays),
		minAttempts: positive(params.MinAttempts, outboxMinAttempts),
		backlogWarn: int64(positive(params.BacklogWarn, outboxBacklogWarn)),
		now:         time.Now,
	}, nil
}

func days(n, fallback int) time.Duration {
	return time.Duration(positive(n, fallback)) * 24 * time.Hour
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxStore
	dlq         dlqStore
	keep        time.Duration
	keepDLQ     time.Duration
	minAttempts int
	backlogWarn int64
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run trims published events and old dead letters in one transaction, then
// reports the unpublished backlog. A growing backlog means the publisher is
// stalled and subscribers are missing balance movements.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var trimmed, trimmedDLQ int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if trimmed, err = j.outbox.DeletePublishedBefore(ctx, tx, now.Add(-j.keep), j.minAttempts); err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
		if trimmedDLQ, err = j.dlq.DeleteFailedBefore(ctx, tx, now.Add(-j.keepDLQ)); err != nil {
			return fmt.Errorf("dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	pending, err := j.outbox.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending ledger events: %w", err)
	}
	parked, err := j.dlq.CountByReason(ctx)
	if err != nil {
		return fmt.Errorf("count dead letters: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"outbox_deleted": trimmed,
		"dlq_deleted":    trimmedDLQ,
		"pending":        pending,
		"dlq_parked":     parked,
	})
	if pending >= j.backlogWarn {
		j.logg.Warn(logCtx, "ledger event backlog above threshold")
		return nil
	}
	j.logg.Info(logCtx, "outbox retention complete")
	return nil
}
