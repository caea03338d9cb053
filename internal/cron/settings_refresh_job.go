package cron

import (
	"context"
	"fmt"
)

type settingsRefresher interface {
	Refresh(ctx context.Context) error
}

// NewSettingsRefreshJob reloads the in-memory settings snapshot so fee and
// payout changes made by other instances take effect.
func NewSettingsRefreshJob(cache settingsRefresher) (Job, error) {
	if cache == nil {
		return nil, fmt.Errorf("settings cache required")
	}
	return &settingsRefreshJob{cache: cache}, nil
}

type settingsRefreshJob struct {
	cache settingsRefresher
}

func (j *settingsRefreshJob) Name() string { return "settings-refresh" }

func (j *settingsRefreshJob) Run(ctx context.Context) error {
	if err := j.cache.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh settings: %w", err)
	}
	return nil
}
