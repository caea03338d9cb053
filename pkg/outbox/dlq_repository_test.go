package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

func TestDLQRepositoryParksPerAggregate(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewDLQRepository(client.DB())
	gdb := client.DB()
	wallet := uuid.New()
	now := time.Now().UTC()

	park := func(aggregate uuid.UUID, reason enums.OutboxDLQErrorReason, failedAt time.Time) uuid.UUID {
		msg := "pubsub unavailable"
		entry := models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   aggregate,
			Payload:       []byte(`{}`),
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			FailedAt:      failedAt,
		}
		require.NoError(t, repo.InsertTx(gdb, entry))
		return entry.EventID
	}
	second := park(wallet, enums.OutboxDLQReasonMaxAttempts, now.Add(-time.Hour))
	first := park(wallet, enums.OutboxDLQReasonMaxAttempts, now.Add(-2*time.Hour))
	park(uuid.New(), enums.OutboxDLQReasonNonRetryable, now.Add(-100*24*time.Hour))

	rows, err := repo.ListByAggregate(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first, rows[0].EventID)
	assert.Equal(t, second, rows[1].EventID)

	counts, err := repo.CountByReason(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[enums.OutboxDLQReasonMaxAttempts])
	assert.EqualValues(t, 1, counts[enums.OutboxDLQReasonNonRetryable])

	deleted, err := repo.DeleteFailedBefore(context.Background(), nil, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestDLQInsertRequiresTransaction(t *testing.T) {
	repo := NewDLQRepository(nil)
	require.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
}
