package cron

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

const (
	defaultParkBackoff    = time.Minute
	defaultMaxParkBackoff = time.Hour
)

// parkedSet keeps entities whose settlement keeps failing out of the next
// oldest-first batches for a growing backoff, so a row that can never settle
// does not hold back the rows queued behind it. It lives in memory: a restart
// gives every entity a fresh attempt. Jobs run one at a time, so no locking.
type parkedSet struct {
	base    time.Duration
	max     time.Duration
	entries map[uuid.UUID]parkedEntry
}

type parkedEntry struct {
	failures int
	until    time.Time
}

func newParkedSet(base, max time.Duration) *parkedSet {
	if base <= 0 {
		base = defaultParkBackoff
	}
	if max < base {
		max = base
	}
	return &parkedSet{base: base, max: max, entries: map[uuid.UUID]parkedEntry{}}
}

// active returns the ids still serving a backoff at now. Entries whose
// backoff ran out more than max ago are forgotten; the row was settled
// elsewhere or will be parked afresh.
func (p *parkedSet) active(now time.Time) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.entries))
	for id, e := range p.entries {
		switch {
		case now.Before(e.until):
			ids = append(ids, id)
		case now.Sub(e.until) > p.max:
			delete(p.entries, id)
		}
	}
	return ids
}

// fail parks id and returns how long for. Retryable failures (store or market
// outages) wait one base interval since they clear on their own; the rest
// double per consecutive failure up to max.
func (p *parkedSet) fail(id uuid.UUID, now time.Time, err error) (int, time.Duration) {
	e := p.entries[id]
	e.failures++
	backoff := p.base
	if !pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable {
		for i := 1; i < e.failures && backoff < p.max; i++ {
			backoff *= 2
		}
		backoff = min(backoff, p.max)
	}
	e.until = now.Add(backoff)
	p.entries[id] = e
	return e.failures, backoff
}

func (p *parkedSet) clear(id uuid.UUID) {
	delete(p.entries, id)
}
