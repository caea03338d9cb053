package cron

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

func TestParkedSetBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newParkedSet(time.Minute, 5*time.Minute)
	broken, flaky := uuid.New(), uuid.New()

	integrity := pkgerrors.New(pkgerrors.CodeIntegrity, "pending ledger row missing")
	for i, want := range []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute} {
		if _, got := p.fail(broken, now, integrity); got != want {
			t.Fatalf("failure %d: backoff %v, want %v", i+1, got, want)
		}
	}
	for range 3 {
		if _, got := p.fail(flaky, now, errors.New("store timeout")); got != time.Minute {
			t.Fatalf("retryable failures should not escalate, got %v", got)
		}
	}

	if got := p.active(now.Add(2 * time.Minute)); len(got) != 1 || got[0] != broken {
		t.Fatalf("active = %v, want only the escalated id", got)
	}

	p.clear(broken)
	if got := p.active(now); len(got) != 1 || got[0] != flaky {
		t.Fatalf("cleared id still parked: %v", got)
	}

	p.active(now.Add(time.Hour))
	if len(p.entries) != 0 {
		t.Fatalf("expired entries not forgotten: %d left", len(p.entries))
	}
}
