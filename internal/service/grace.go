package service

import (
	"sync"
	"time"
)

// GraceTable tracks the per-id grace window opened by a local mutation.
// While a window is active, every inbound snapshot for that id is presumed
// to be a server echo of pre-mutation state and is rejected by the
// staleness detector. Expiry is lazy; there are no timer goroutines to
// leak, a lookup after the deadline simply reports inactive.
type GraceTable struct {
	mu     sync.Mutex
	until  map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewGraceTable creates a grace table with the given window duration.
func NewGraceTable(window time.Duration) *GraceTable {
	return &GraceTable{
		until:  make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Touch opens (or re-opens) the grace window for an id. A superseding
// mutation on the same id restarts the window from now.
func (g *GraceTable) Touch(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until[id] = g.now().Add(g.window)
}

// Clear cancels the grace window for an id. Called on rollback; commit
// leaves the window running so late server echoes of pre-mutation state
// are still suppressed.
func (g *GraceTable) Clear(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, id)
}

// Active reports whether the id is currently inside its grace window.
func (g *GraceTable) Active(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline, ok := g.until[id]
	if !ok {
		return false
	}
	if g.now().After(deadline) {
		delete(g.until, id)
		return false
	}
	return true
}
