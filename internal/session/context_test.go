package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewContext(start)

	_, err := uuid.Parse(c.ID)
	require.NoError(t, err)
	assert.Equal(t, start, c.StartedAt)
	assert.Equal(t, Status{}, c.Status())

	assert.NotEqual(t, c.ID, NewContext(start).ID)
}

func TestPublish(t *testing.T) {
	c := NewContext(time.Now())
	c.Publish(Status{Tick: 3, Tracked: 2, AlertActive: true})

	got := c.Status()
	assert.Equal(t, uint64(3), got.Tick)
	assert.Equal(t, 2, got.Tracked)
	assert.True(t, got.AlertActive)
}

func TestConcurrentAccess(t *testing.T) {
	c := NewContext(time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n uint64) {
			defer wg.Done()
			c.Publish(Status{Tick: n})
		}(uint64(i))
		go func() {
			defer wg.Done()
			_ = c.Status()
		}()
	}
	wg.Wait()
	assert.Less(t, c.Status().Tick, uint64(20))
}

func TestStatus_Ambient(t *testing.T) {
	s := Status{Tracked: 5, Scripted: 2, Orphaned: 1}
	assert.Equal(t, 2, s.Ambient())
}

func TestStatus_JSONOmitsZeroAttempt(t *testing.T) {
	b, err := json.Marshal(Status{Tick: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "lastSpawnAttempt")

	b, err = json.Marshal(Status{LastSpawnAttempt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"lastSpawnAttempt":"2026-03-01T12:00:00Z"`)
}
