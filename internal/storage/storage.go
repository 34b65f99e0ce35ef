// internal/storage/storage.go
package storage

import (
	"errors"
	"time"

	"github.com/morespeeders/extension/pkg/world"
)

// ErrUnknownBackend is returned for an unrecognised storage.type.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Kind is a lifecycle transition of a spawned pair.
type Kind string

const (
	KindSpawned   Kind = "spawned"
	KindAborted   Kind = "aborted"
	KindHandedOff Kind = "handed_off"
	KindDespawned Kind = "despawned" // deleted for drifting out of range
	KindLost      Kind = "lost"      // removed by the host
)

// Event is one journal entry. Reason is only set for aborted attempts.
type Event struct {
	Time     time.Time
	Kind     Kind
	EntityID string
	Model    string
	Reason   string
	Position world.Vector3
	Distance float64
}

// Summary counts events by kind.
type Summary map[Kind]int

// Backend is the interface all journal implementations must satisfy.
// Journals live for one session only.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	RecordLifecycle(e *Event) error
	Summary() (Summary, error)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Init() error                  { return nil }
func (Noop) Close() error                 { return nil }
func (Noop) RecordLifecycle(*Event) error { return nil }
func (Noop) Summary() (Summary, error)    { return Summary{}, nil }
