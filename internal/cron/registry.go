package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one unit of settlement or maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
	last  time.Time
}

// Registry holds jobs in run order. A job registered with a cadence only
// becomes due once that long has passed since its last successful run;
// the cadence state is per process, so a lock handover reruns it early.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds a job that runs every cycle.
func (r *Registry) Register(job Job) {
	r.RegisterEvery(job, 0)
}

// RegisterEvery adds a job that runs at most once per every. Nil jobs and
// duplicate names are ignored.
func (r *Registry) RegisterEvery(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(job.Name()) != nil {
		return
	}
	r.entries = append(r.entries, &entry{job: job, every: every})
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.job.Name()
	}
	return names
}

// Jobs returns every registered job in run order, due or not.
func (r *Registry) Jobs() []Job {
	return r.Due(time.Time{})
}

// Due returns the jobs to run at now. A zero now ignores cadences.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if now.IsZero() || e.every <= 0 || e.last.IsZero() || now.Sub(e.last) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRun records a successful run so cadenced jobs wait for their next slot.
func (r *Registry) MarkRun(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(name); e != nil {
		e.last = at
	}
}

func (r *Registry) find(name string) *entry {
	for _, e := range r.entries {
		if e.job.Name() == name {
			return e
		}
	}
	return nil
}
