package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
)

func TestSchemaSurvivesDroppedConnections(t *testing.T) {
	client := Open(t)
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	// every released connection is closed, as happens after a cancelled query
	sqlDB.SetMaxIdleConns(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_ = client.DB().WithContext(ctx).Exec("SELECT 1").Error

	var count int64
	require.NoError(t, client.DB().Model(&models.Wallet{}).Count(&count).Error)
	require.Zero(t, count)
}
