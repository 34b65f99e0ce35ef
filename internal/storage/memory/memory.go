// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/morespeeders/extension/internal/storage"
)

// DefaultCapacity bounds how many events are retained for Events.
const DefaultCapacity = 1024

// Backend keeps the session journal in memory. Counts cover every event ever
// recorded; the event list keeps only the newest capacity entries.
type Backend struct {
	capacity int
	events   []storage.Event
	counts   storage.Summary
	mu       sync.RWMutex
}

// New creates a new memory backend. capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Backend {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Backend{
		capacity: capacity,
		counts:   make(storage.Summary),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// RecordLifecycle appends an event, evicting the oldest when full.
func (b *Backend) RecordLifecycle(e *storage.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts[e.Kind]++
	if len(b.events) == b.capacity {
		copy(b.events, b.events[1:])
		b.events = b.events[:len(b.events)-1]
	}
	b.events = append(b.events, *e)
	return nil
}

// Summary returns a copy of the per-kind counts.
func (b *Backend) Summary() (storage.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(storage.Summary, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out, nil
}

// Events returns the retained events, oldest first.
func (b *Backend) Events() []storage.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]storage.Event(nil), b.events...)
}
