package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)
	investmentID := uuid.New()

	event := models.OutboxEvent{
		EventType:     enums.EventInvestmentCancelled,
		AggregateType: enums.AggregateInvestment,
		AggregateID:   investmentID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.InvestmentEvent{
			InvestmentID: investmentID,
			Amount:       decimal.RequireFromString("25.50"),
			Status:       enums.InvestmentStatusCancelled,
			NewBalance:   decimal.RequireFromString("125.50"),
		})),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "ledger-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.InvestmentEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, investmentID, payload.InvestmentID)
	assert.True(t, payload.NewBalance.Equal(decimal.RequireFromString("125.50")))
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestEventRegistryCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventFundsDeposited, enums.EventWithdrawalRequested, enums.EventWithdrawalSettled,
		enums.EventFundsTransferred, enums.EventInvestmentCreated, enums.EventInvestmentCancelled,
		enums.EventInvestmentCompleted, enums.EventP2PTradeOpened, enums.EventP2PTradeStatusChange,
		enums.EventP2PTradeReleased, enums.EventP2PTradeCancelled, enums.EventBinaryOrderPlaced,
		enums.EventBinaryOrderSettled, enums.EventBinaryOrderCancelled, enums.EventExchangeOrderPlaced,
		enums.EventExchangeOrderFilled, enums.EventExchangeOrderCancel,
	} {
		_, ok := reg.entries[eventType]
		assert.True(t, ok, eventType)
	}
}

func TestEventRegistryResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "ledger_exploded",
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateBinaryOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"future envelope version": {
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       mustVersionedEnvelope(t, outbox.EnvelopeVersion+1, []byte(`{}`)),
		},
		"payload schema drift": {
			EventType:     enums.EventInvestmentCancelled,
			AggregateType: enums.AggregateInvestment,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"investmentId":"`+uuid.NewString()+`","leverage":3}`)),
		},
		"bad envelope": {
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       []byte(`not-json`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{LedgerTopic: "ledger-topic"})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) []byte {
	t.Helper()
	return mustVersionedEnvelope(t, outbox.EnvelopeVersion, payload)
}

func mustVersionedEnvelope(t *testing.T, version int, payload []byte) []byte {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	require.NoError(t, err)
	return data
}
