package pipeline

import (
	"fmt"
	"sync"

	"github.com/Clinteastman/heartlib/internal/model"
)

// Registry is the canonical in-memory table of every job created during the
// process lifetime. Jobs are never evicted; admission is serialized to one
// at a time so the table grows by at most one entry per generation.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create stores a new queued job under the given identifier. It fails only
// on invalid parameters, never on capacity.
func (r *Registry) Create(id string, params model.GenerationParams) (*Job, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation parameters: %w", err)
	}

	job := newJob(id, params)

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	return job, nil
}

// Get looks up a job by id. Absence is a valid outcome, not an error.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Len returns the number of jobs ever created
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
