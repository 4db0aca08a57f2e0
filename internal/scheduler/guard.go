package scheduler

import (
	"slices"
	"sync"
)

// SourceState is the run state of one source.
type SourceState string

const (
	StateIdle    SourceState = "idle"
	StateRunning SourceState = "running"
)

// Guard is a per-source single-flight marker. A source moves Idle → Running
// only through TryAcquire and back only through the returned release.
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewGuard creates a guard with every source Idle.
func NewGuard() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// TryAcquire marks id Running. It reports false, with a nil release, when
// id is already Running. release is idempotent.
func (g *Guard) TryAcquire(id string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[id]; busy {
		return nil, false
	}
	g.running[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, id)
			g.mu.Unlock()
		})
	}, true
}

// State returns the current state of id.
func (g *Guard) State(id string) SourceState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[id]; busy {
		return StateRunning
	}
	return StateIdle
}

// Running returns the ids currently Running, sorted.
func (g *Guard) Running() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.running))
	for id := range g.running {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	slices.Sort(ids)
	return ids
}
