// Package settings holds the platform knobs (fees, payout percentages,
// duration limits) behind an injected, explicitly refreshed cache.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// Known setting keys.
const (
	KeyTransferFeePercent   = "transfer_fee_percent"
	KeyWithdrawalFeePercent = "withdrawal_fee_percent"
	KeyP2PFeePercent        = "p2p_fee_percent"
	KeyExchangeFeePercent   = "exchange_fee_percent"
	KeyBinaryPayoutPercent  = "binary_payout_percent"
	KeyBinaryMinDuration    = "binary_min_duration"
	KeyBinaryMaxDuration    = "binary_max_duration"
	KeyInvestmentROIPercent = "investment_roi_percent"
	KeyInvestmentDuration   = "investment_duration"
	KeyInvestmentMinAmount  = "investment_min_amount"
	KeyWithdrawalMinAmount  = "withdrawal_min_amount"
)

// Reader is the read surface injected into the ledger coordinator.
type Reader interface {
	Decimal(key string, def decimal.Decimal) decimal.Decimal
	Duration(key string, def time.Duration) time.Duration
}

// Cache keeps an in-memory snapshot of the settings table. Reads never touch
// the store; Refresh replaces the snapshot atomically.
type Cache struct {
	repo   Repository
	logg   *logger.Logger
	mu     sync.RWMutex
	values map[string]string
	loaded time.Time
}

func NewCache(repo Repository, logg *logger.Logger) (*Cache, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &Cache{repo: repo, logg: logg, values: map[string]string{}}, nil
}

// Refresh reloads every setting from the store.
func (c *Cache) Refresh(ctx context.Context) error {
	rows, err := c.repo.All(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	next := make(map[string]string, len(rows))
	for _, row := range rows {
		next[row.Key] = row.Value
	}

	c.mu.Lock()
	c.values = next
	c.loaded = time.Now().UTC()
	c.mu.Unlock()

	if c.logg != nil {
		c.logg.Debug(c.logg.WithField(ctx, "settings", len(next)), "settings refreshed")
	}
	return nil
}

// Set writes a value through to the store and refreshes the snapshot.
// Numeric keys are validated before the write.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key is required")
	}
	if err := validateValue(key, value); err != nil {
		return err
	}
	if err := c.repo.Upsert(ctx, key, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store setting")
	}
	return c.Refresh(ctx)
}

func validateValue(key, value string) error {
	switch {
	case strings.HasSuffix(key, "_percent"), strings.HasSuffix(key, "_amount"):
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a non-negative decimal", key)
		}
	case strings.HasSuffix(key, "_duration"):
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a positive duration", key)
		}
	}
	return nil
}

// Get returns the raw value for key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Snapshot copies the current values.
func (c *Cache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// LoadedAt is the time of the last successful refresh.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Decimal parses key as a decimal, falling back to def when it is missing
// or malformed.
func (c *Cache) Decimal(key string, def decimal.Decimal) decimal.Decimal {
	raw, ok := c.Get(key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return d
}

// Duration parses key as a Go duration, falling back to def.
func (c *Cache) Duration(key string, def time.Duration) time.Duration {
	raw, ok := c.Get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
