package registry

import (
	"time"

	"github.com/morespeeders/extension/pkg/world"
)

// TrackedEntity is a spawned vehicle and its driver.
type TrackedEntity struct {
	ID        string
	Vehicle   world.Handle
	Driver    world.Handle
	Model     string
	SpawnedAt time.Time

	// HasReacted is set once the pair has been handed to ambient traffic. It never goes back.
	HasReacted bool
}

// MarkReacted flips HasReacted. It reports false if the entity had already reacted.
func (e *TrackedEntity) MarkReacted() bool {
	if e.HasReacted {
		return false
	}
	e.HasReacted = true
	return true
}

// Registry is the ordered set of tracked entities. It is owned by the poll loop
// and is not safe for concurrent use.
type Registry struct {
	entities []*TrackedEntity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends an entity in registration order.
func (r *Registry) Add(e *TrackedEntity) {
	r.entities = append(r.entities, e)
}

// Len returns the number of tracked entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// At returns entity i in registration order.
func (r *Registry) At(i int) *TrackedEntity {
	return r.entities[i]
}

// All returns the entities in registration order. The slice is a copy; the
// entities are not.
func (r *Registry) All() []*TrackedEntity {
	out := make([]*TrackedEntity, len(r.entities))
	copy(out, r.entities)
	return out
}

// RemoveAt drops entity i, preserving the order of the rest.
func (r *Registry) RemoveAt(i int) {
	copy(r.entities[i:], r.entities[i+1:])
	r.entities[len(r.entities)-1] = nil
	r.entities = r.entities[:len(r.entities)-1]
}

// Reverse calls fn for each entity from newest to oldest. fn may call RemoveAt
// on the index it was given.
func (r *Registry) Reverse(fn func(i int, e *TrackedEntity)) {
	for i := len(r.entities) - 1; i >= 0; i-- {
		fn(i, r.entities[i])
	}
}

// Counts summarizes the registry.
type Counts struct {
	Tracked int `json:"tracked"`
	Reacted int `json:"reacted"`
}

// Count returns tracked and reacted totals.
func (r *Registry) Count() Counts {
	c := Counts{Tracked: len(r.entities)}
	for _, e := range r.entities {
		if e.HasReacted {
			c.Reacted++
		}
	}
	return c
}
