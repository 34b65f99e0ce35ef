package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morespeeders/extension/pkg/world"
)

// Status is the state published at the end of every tick.
type Status struct {
	Tick             uint64        `json:"tick"`
	At               time.Time     `json:"at"`
	Reference        world.Vector3 `json:"reference"`
	AlertActive      bool          `json:"alertActive"`
	Tracked          int           `json:"tracked"`
	Reacted          int           `json:"reacted"`
	Orphaned         int           `json:"orphaned"`
	LastOutcome      string        `json:"lastOutcome,omitempty"`
	LastSpawnAttempt time.Time     `json:"lastSpawnAttempt,omitzero"`

	// Scripted counts seated pairs still on their scripted drive. Together
	// with Orphaned and the seated reacted pairs it partitions Tracked.
	Scripted int `json:"scripted"`
}

// Ambient returns the seated pairs already handed to ambient traffic.
func (s Status) Ambient() int {
	return s.Tracked - s.Scripted - s.Orphaned
}

// Context holds the identity of the running session and its latest status.
// The poll loop writes; host commands and the monitor read.
type Context struct {
	ID        string
	StartedAt time.Time

	mu     sync.RWMutex
	status Status
}

// NewContext starts a session with a fresh id.
func NewContext(startedAt time.Time) *Context {
	return &Context{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}
}

// Status returns the latest published status
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Publish replaces the status
func (c *Context) Publish(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}
