package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/payloads"
)

// EventDescriptor is what the publisher needs to ship one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a stored row decoded and checked against its schema.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that can never be published as stored.
// The publisher dead-letters it on the first attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// published lists every event type the ledger emits. The payload schema
// follows the aggregate, except transfers which carry both sides.
var published = []enums.OutboxEventType{
	enums.EventFundsDeposited,
	enums.EventWithdrawalRequested,
	enums.EventWithdrawalSettled,
	enums.EventFundsTransferred,
	enums.EventInvestmentCreated,
	enums.EventInvestmentCancelled,
	enums.EventInvestmentCompleted,
	enums.EventP2PTradeOpened,
	enums.EventP2PTradeStatusChange,
	enums.EventP2PTradeReleased,
	enums.EventP2PTradeCancelled,
	enums.EventBinaryOrderPlaced,
	enums.EventBinaryOrderSettled,
	enums.EventBinaryOrderCancelled,
	enums.EventExchangeOrderPlaced,
	enums.EventExchangeOrderFilled,
	enums.EventExchangeOrderCancel,
}

func payloadFactory(e enums.OutboxEventType) func() any {
	if e == enums.EventFundsTransferred {
		return func() any { return &payloads.FundsTransferredEvent{} }
	}
	switch e.Aggregate() {
	case enums.AggregateWallet, enums.AggregateTransaction:
		return func() any { return &payloads.BalanceMovedEvent{} }
	case enums.AggregateInvestment:
		return func() any { return &payloads.InvestmentEvent{} }
	case enums.AggregateP2PTrade:
		return func() any { return &payloads.P2PTradeEvent{} }
	case enums.AggregateBinaryOrder:
		return func() any { return &payloads.BinaryOrderEvent{} }
	case enums.AggregateExchangeOrder:
		return func() any { return &payloads.ExchangeOrderEvent{} }
	default:
		return nil
	}
}

// NewEventRegistry routes every ledger event to the single ledger topic;
// subscribers filter on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LedgerTopic == "" {
		return nil, errors.New("ledger topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(published))}
	for _, e := range published {
		factory := payloadFactory(e)
		if factory == nil {
			return nil, fmt.Errorf("event type %s has no payload schema", e)
		}
		reg.entries[e] = EventDescriptor{
			EventType:      e,
			AggregateType:  e.Aggregate(),
			Topic:          cfg.LedgerTopic,
			PayloadFactory: factory,
		}
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload
// strictly, so schema drift between writer and publisher dead-letters the
// row instead of shipping a partial event.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > outbox.EnvelopeVersion {
		return nil, nonRetryable("unsupported envelope version %d", env.Version)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return nil, nonRetryable("envelope event id: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
