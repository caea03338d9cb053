package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	walletID := uuid.New()
	userID := uuid.New()
	occurred := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   walletID,
			Actor:         &ActorRef{UserID: userID, Role: "user"},
			Data:          map[string]string{"amount": "10"},
			OccurredAt:    occurred,
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventFundsDeposited, rows[0].EventType)
	assert.Equal(t, walletID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.True(t, occurred.Equal(env.OccurredAt))
	require.NotNil(t, env.Actor)
	assert.Equal(t, userID, env.Actor.UserID)
	assert.JSONEq(t, `{"amount":"10"}`, string(env.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventInvestmentCancelled,
			AggregateType: enums.AggregateInvestment,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("ledger append failed")
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestEmitRejectsBadInput(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventFundsDeposited, AggregateType: enums.AggregateWallet})
	require.Error(t, err)

	err = svc.Emit(context.Background(), client.DB(), DomainEvent{EventType: "bogus", AggregateType: enums.AggregateWallet})
	require.Error(t, err)

	// A mismatched aggregate and a missing id are reported together.
	err = svc.Emit(context.Background(), client.DB(), DomainEvent{
		EventType:     enums.EventWithdrawalSettled,
		AggregateType: enums.AggregateWallet,
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(errors.Unwrap(err)), 2)
	assert.Contains(t, err.Error(), `want "transaction"`)

	var n int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRepositoryFetchAndMark(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	gdb := client.DB()

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, repo.Insert(context.Background(), gdb, models.OutboxEvent{
			ID:            ids[i],
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			CreatedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(gdb, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[0], rows[0].ID)

	require.NoError(t, repo.MarkPublishedTx(gdb, ids[0]))
	require.NoError(t, repo.MarkFailedTx(gdb, ids[1], errors.New("pubsub down")))
	require.NoError(t, repo.MarkTerminalTx(gdb, ids[2], errors.New("bad payload"), 3))

	rows, err = repo.FetchUnpublishedForPublish(gdb, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[1], rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "pubsub down", *rows[0].LastError)

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)
}

func TestDeletePublishedBefore(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	gdb := client.DB()
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)

	insert := func(created time.Time, published *time.Time, attempts int) uuid.UUID {
		id := uuid.New()
		require.NoError(t, repo.Insert(context.Background(), gdb, models.OutboxEvent{
			ID:            id,
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			CreatedAt:     created,
			PublishedAt:   published,
			AttemptCount:  attempts,
		}))
		return id
	}
	insert(old, &old, 1)
	insert(old, nil, 10)
	fresh := insert(now, &now, 1)
	pending := insert(old, nil, 2)

	deleted, err := repo.DeletePublishedBefore(context.Background(), gdb, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var left []models.OutboxEvent
	require.NoError(t, gdb.Order("created_at").Find(&left).Error)
	require.Len(t, left, 2)
	assert.ElementsMatch(t, []uuid.UUID{fresh, pending}, []uuid.UUID{left[0].ID, left[1].ID})
}
