package task

import (
	"sort"
	"sync"
)

// Registry holds the records of running background tasks keyed by task id.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// InsertIfAbsent adds r unless a record with the same id is present.
// It returns false, leaving the registry untouched, on a duplicate.
func (g *Registry) InsertIfAbsent(r *Record) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[r.ID]; ok {
		return false
	}
	g.records[r.ID] = r
	return true
}

// Remove deletes r if it is still the registered record for its id.
func (g *Registry) Remove(r *Record) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.records[r.ID]; ok && cur == r {
		delete(g.records, r.ID)
		return true
	}
	return false
}

func (g *Registry) Get(id string) (*Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[id]
	return r, ok
}

// Snapshot returns the current records ordered by start time, then id.
func (g *Registry) Snapshot() []*Record {
	g.mu.Lock()
	out := make([]*Record, 0, len(g.records))
	for _, r := range g.records {
		out = append(out, r)
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
