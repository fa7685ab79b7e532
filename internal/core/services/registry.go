package services

import (
	"sync"
	"time"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// Registry tracks which (requester, hash) pairs are currently being
// processed so a requester can never have two concurrent attempts against
// the identical hash. All entries are in-memory and die with the process.
type Registry struct {
	mu   sync.Mutex
	jobs map[domain.JobKey]domain.JobRecord
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[domain.JobKey]domain.JobRecord)}
}

// TryAcquire inserts an entry for key if none exists and reports whether it
// did. Check and insert happen under one lock so concurrent callers for the
// same key see exactly one winner.
func (r *Registry) TryAcquire(key domain.JobKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[key]; exists {
		return false
	}
	r.jobs[key] = domain.JobRecord{
		Status:    domain.JobRecordRunning,
		CreatedAt: time.Now(),
	}
	return true
}

// Release removes the entry for key. A no-op if absent, so it is safe to
// call from every exit path of the pipeline.
func (r *Registry) Release(key domain.JobKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, key)
}

// Active reports the number of held entries.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
