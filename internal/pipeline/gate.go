package pipeline

import "sync"

// Gate enforces "at most one active job" for the whole process. The guarded
// resource (accelerator memory) cannot be shared across concurrent heavy
// computations, so the check-and-set must not interleave with concurrent
// callers.
type Gate struct {
	mu      sync.Mutex
	current string
}

func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire atomically claims the slot for the given job id. Two
// simultaneous attempts never both succeed.
func (g *Gate) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != "" {
		return false
	}
	g.current = id
	return true
}

// Release clears the slot unconditionally. Called exactly once by the
// executor on reaching any terminal state.
func (g *Gate) Release() {
	g.mu.Lock()
	g.current = ""
	g.mu.Unlock()
}

// Current returns the admitted job id, if any
func (g *Gate) Current() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.current != ""
}

// IsOccupied reports whether a job currently holds the slot
func (g *Gate) IsOccupied() bool {
	_, occupied := g.Current()
	return occupied
}
