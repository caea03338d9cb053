package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/registry"
)

// relayOutcome is what happened to one outbox row within a batch.
type relayOutcome int

const (
	relayPublished relayOutcome = iota
	relayRetry
	relayDeadLettered
	relayHeld
)

// batchRun carries per-batch state. An aggregate whose event is waiting for
// a retry is held so its later events are not published ahead of it.
type batchRun struct {
	tx   *gorm.DB
	held map[uuid.UUID]struct{}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true
		s.metrics.Batch()

		run := &batchRun{tx: tx, held: make(map[uuid.UUID]struct{})}
		for _, event := range events {
			outcome, err := s.relay(ctx, run, event)
			if err != nil {
				return err
			}
			s.metrics.Event(string(event.EventType), outcomeLabel(outcome))
			if outcome == relayRetry {
				run.held[event.AggregateID] = struct{}{}
			}
		}
		return nil
	})
	return processed, err
}

// relay publishes one row and records the result. Only bookkeeping
// failures are returned; publish failures become an outcome.
func (s *Service) relay(ctx context.Context, run *batchRun, event models.OutboxEvent) (relayOutcome, error) {
	fields := relayFields(event)
	if _, ok := run.held[event.AggregateID]; ok {
		s.logg.Debug(s.logg.WithFields(ctx, fields), "ledger event held behind pending retry")
		return relayHeld, nil
	}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return relayDeadLettered, s.deadLetter(ctx, run.tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(run.tx, event.ID); err != nil {
			return relayPublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "ledger event published")
		return relayPublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return relayDeadLettered, s.deadLetter(ctx, run.tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		err := fmt.Errorf("max publish attempts reached: %w", pubErr)
		return relayDeadLettered, s.deadLetter(ctx, run.tx, event, enums.OutboxDLQReasonMaxAttempts, err, fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", pubErr.Error())
	s.logg.Warn(logCtx, "ledger event publish failed")
	if err := s.repo.MarkFailedTx(run.tx, event.ID, pubErr); err != nil {
		return relayRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return relayRetry, nil
}

// deadLetter copies the row into outbox_dlq and stops further attempts.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error())
	s.logg.Warn(logCtx, "ledger event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, ledgerMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// ledgerMessage keys the message by aggregate so the events of one wallet,
// withdrawal or order reach subscribers in commit order.
func ledgerMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	env := resolved.Envelope
	attrs := map[string]string{
		"event_id":         env.EventID,
		"event_type":       string(event.EventType),
		"aggregate_type":   string(event.AggregateType),
		"aggregate_id":     event.AggregateID.String(),
		"envelope_version": strconv.Itoa(env.Version),
		"occurred_at":      env.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil {
		attrs["actor_user_id"] = env.Actor.UserID.String()
		if env.Actor.Role != "" {
			attrs["actor_role"] = env.Actor.Role
		}
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes:  attrs,
	}
}

func relayFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func outcomeLabel(o relayOutcome) string {
	switch o {
	case relayRetry:
		return metrics.PublishRetry
	case relayDeadLettered:
		return metrics.PublishDLQ
	case relayHeld:
		return metrics.PublishHeld
	default:
		return metrics.PublishOK
	}
}
