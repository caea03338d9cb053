package wallets

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

func seedWallet(t *testing.T, client *db.Client, key models.WalletKey, balance string) *models.Wallet {
	t.Helper()
	repo := NewRepository(client.DB())
	w, err := repo.Ensure(context.Background(), key, 8)
	require.NoError(t, err)
	if balance != "0" {
		w, err = repo.Credit(context.Background(), key, decimal.RequireFromString(balance))
		require.NoError(t, err)
	}
	return w
}

func usdtKey() models.WalletKey {
	return models.NewWalletKey(uuid.New(), "usdt", enums.WalletTypeSpot)
}

func TestRepository_GetBalanceNotFound(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	_, err := repo.GetBalance(context.Background(), usdtKey())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestRepository_EnsureIsIdempotent(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	key := usdtKey()

	first, err := repo.Ensure(context.Background(), key, 6)
	require.NoError(t, err)
	second, err := repo.Ensure(context.Background(), key, 6)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "USDT", second.Currency)
	assert.True(t, second.Balance.IsZero())
	assert.Equal(t, enums.RecordStateActive, second.State)
}

func TestRepository_CreditDebit(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	key := usdtKey()
	seedWallet(t, client, key, "100.00")

	w, err := repo.Debit(context.Background(), key, decimal.RequireFromString("40.25"))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("59.75")), w.Balance.String())

	w, err = repo.Credit(context.Background(), key, decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("60")))

	stored, err := repo.GetBalance(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("60")))
	assert.EqualValues(t, 3, stored.Version)
}

func TestRepository_RejectsBadAmounts(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	key := usdtKey()
	seedWallet(t, client, key, "10")

	for _, raw := range []string{"0", "-1"} {
		_, err := repo.Credit(context.Background(), key, decimal.RequireFromString(raw))
		assert.Equal(t, pkgerrors.CodeInvalidAmount, pkgerrors.CodeOf(err), raw)
	}

	_, err := repo.Debit(context.Background(), key, decimal.RequireFromString("0.000000001"))
	assert.Equal(t, pkgerrors.CodeInvalidAmount, pkgerrors.CodeOf(err))
}

func TestRepository_DebitNeverGoesNegative(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	key := usdtKey()
	seedWallet(t, client, key, "5")

	steps := []struct {
		credit bool
		amount string
		ok     bool
	}{
		{false, "3", true},
		{false, "2.5", false},
		{true, "1", true},
		{false, "3", true},
		{false, "0.00000001", false},
	}
	for _, step := range steps {
		var err error
		if step.credit {
			_, err = repo.Credit(context.Background(), key, decimal.RequireFromString(step.amount))
		} else {
			_, err = repo.Debit(context.Background(), key, decimal.RequireFromString(step.amount))
		}
		if step.ok {
			require.NoError(t, err)
		} else {
			assert.Equal(t, pkgerrors.CodeInsufficientFunds, pkgerrors.CodeOf(err))
		}

		w, err := repo.GetBalance(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, w.Balance.IsNegative())
	}
}

func TestRepository_ConcurrentDebitsDoNotDoubleSpend(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	key := usdtKey()
	seedWallet(t, client, key, "100")

	amounts := []string{"70", "60"}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, raw := range amounts {
		wg.Add(1)
		go func(i int, amount decimal.Decimal) {
			defer wg.Done()
			errs[i] = client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := repo.WithTx(tx).Debit(context.Background(), key, amount)
				return err
			})
		}(i, decimal.RequireFromString(raw))
	}
	wg.Wait()

	failures := 0
	spent := decimal.Zero
	for i, err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, pkgerrors.CodeInsufficientFunds, pkgerrors.CodeOf(err))
			continue
		}
		spent = spent.Add(decimal.RequireFromString(amounts[i]))
	}
	assert.Equal(t, 1, failures)

	w, err := repo.GetBalance(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(100).Sub(spent)), w.Balance.String())
}

func TestRepository_DistinctWalletsAreIndependent(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	keys := []models.WalletKey{usdtKey(), usdtKey(), models.NewWalletKey(uuid.New(), "BTC", enums.WalletTypeEco)}
	for _, key := range keys {
		seedWallet(t, client, key, "10")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(keys))
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key models.WalletKey) {
			defer wg.Done()
			errs[i] = client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := repo.WithTx(tx).Debit(context.Background(), key, decimal.NewFromInt(10))
				return err
			})
		}(i, key)
	}
	wg.Wait()

	for i, key := range keys {
		require.NoError(t, errs[i])
		w, err := repo.GetBalance(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
	}
}

func TestRepository_ListByUserScopes(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	userID := uuid.New()
	spot := models.NewWalletKey(userID, "USDT", enums.WalletTypeSpot)
	fiat := models.NewWalletKey(userID, "USD", enums.WalletTypeFiat)
	seedWallet(t, client, spot, "1")
	seedWallet(t, client, fiat, "0")

	require.NoError(t, client.DB().Model(&models.Wallet{}).
		Where("user_id = ? AND type = ?", userID, enums.WalletTypeFiat).
		Update("state", enums.RecordStateDeleted).Error)

	active, err := repo.ListByUser(context.Background(), userID, enums.ScopeActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, enums.WalletTypeSpot, active[0].Type)

	all, err := repo.ListByUser(context.Background(), userID, enums.ScopeIncludeDeleted)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetBalance(context.Background(), fiat)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	revived, err := repo.Ensure(context.Background(), fiat, 2)
	require.NoError(t, err)
	assert.Equal(t, enums.RecordStateActive, revived.State)
}
