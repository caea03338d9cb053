package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return f.err
}

func TestSettingsRefreshJob(t *testing.T) {
	if _, err := NewSettingsRefreshJob(nil); err == nil {
		t.Fatal("expected error without cache")
	}
	cache := &fakeRefresher{}
	job, err := NewSettingsRefreshJob(cache)
	if err != nil {
		t.Fatalf("NewSettingsRefreshJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cache.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if cache.calls != 2 {
		t.Fatalf("expected 2 refreshes, got %d", cache.calls)
	}
}

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestIdempotencyPurgeJobUsesTTL(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	jobIface, err := NewIdempotencyPurgeJob(IdempotencyPurgeJobParams{
		Logger:     testLogger(),
		Operations: purger,
		TTL:        6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIdempotencyPurgeJob: %v", err)
	}
	job := jobIface.(*idempotencyPurgeJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-6 * time.Hour); !purger.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, purger.cutoff)
	}

	purger.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
