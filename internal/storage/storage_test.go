// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/morespeeders/extension/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = storage.Noop{}

func TestNoop(t *testing.T) {
	var b storage.Backend = storage.Noop{}

	require.NoError(t, b.Init())
	require.NoError(t, b.RecordLifecycle(&storage.Event{Kind: storage.KindSpawned}))

	sum, err := b.Summary()
	require.NoError(t, err)
	assert.Empty(t, sum)
	assert.NoError(t, b.Close())
}
