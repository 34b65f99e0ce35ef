package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/registry"
	"github.com/morespeeders/extension/internal/simworld"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/internal/storage/memory"
	"github.com/morespeeders/extension/internal/world/native"
	"github.com/morespeeders/extension/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	world    *simworld.World
	journal  *memory.Backend
	sweeper  *Sweeper
	registry *registry.Registry
}

func newFixture() *fixture {
	f := &fixture{
		world:    simworld.New(),
		journal:  memory.New(0),
		registry: registry.New(),
	}
	f.sweeper = New(Dependencies{World: f.world, Journal: f.journal})
	return f
}

func (f *fixture) track(t *testing.T, id string, p world.Vector3) *registry.TrackedEntity {
	t.Helper()
	v, ok := f.world.CreateVehicle("sultan", p, 0)
	require.True(t, ok)
	d, ok := f.world.CreatePed("a_m_m_business_01", p)
	require.True(t, ok)
	f.world.SetIntoVehicle(d, v)
	e := &registry.TrackedEntity{ID: id, Vehicle: v, Driver: d, Model: "sultan"}
	f.registry.Add(e)
	return e
}

func ids(reg *registry.Registry) []string {
	var out []string
	for _, e := range reg.All() {
		out = append(out, e.ID)
	}
	return out
}

func cfg() config.Config {
	return config.Default()
}

// Scenario E: the subject drives away and a pair falls past MaxDistance.
func TestSweep_DeletesOutOfRange(t *testing.T) {
	f := newFixture()
	near := f.track(t, "near", world.Vector3{X: 500})
	far := f.track(t, "far", world.Vector3{X: 500})

	f.world.Move(far.Vehicle, world.Vector3{X: 950})
	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, Result{Despawned: 1}, res)
	assert.Equal(t, []string{"near"}, ids(f.registry))
	assert.True(t, f.world.Exists(near.Vehicle))

	veh, ok := f.world.Deleted(far.Vehicle)
	require.True(t, ok)
	assert.True(t, veh.DeletedByRequest)
	drv, ok := f.world.Deleted(far.Driver)
	require.True(t, ok)
	assert.True(t, drv.DeletedByRequest)

	events := f.journal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, storage.KindDespawned, events[0].Kind)
	assert.Equal(t, "far", events[0].EntityID)
	assert.Equal(t, 950.0, events[0].Distance)
}

func TestSweep_MaxDistanceIsKept(t *testing.T) {
	f := newFixture()
	f.track(t, "edge", world.Vector3{Y: 900})

	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Zero(t, res.Removed())
	assert.Equal(t, 1, f.registry.Len())
}

func TestSweep_DropsLostVehicleWithoutDeleting(t *testing.T) {
	f := newFixture()
	e := f.track(t, "lost", world.Vector3{X: 100})
	f.world.Despawn(e.Vehicle)

	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, Result{Lost: 1}, res)
	assert.Zero(t, f.registry.Len())

	// the driver is left for the host to clean up
	assert.True(t, f.world.Exists(e.Driver))
	veh, _ := f.world.Deleted(e.Vehicle)
	assert.False(t, veh.DeletedByRequest)

	sum, _ := f.journal.Summary()
	assert.Equal(t, 1, sum[storage.KindLost])
}

// Orphans are retained without any distance check, so a far-away pair with an
// unseated or missing driver is never cleaned up by the sweep. This mirrors the
// source behavior; see DESIGN.md.
func TestSweep_OrphansAreRetainedEvenWhenFar(t *testing.T) {
	f := newFixture()
	unseated := f.track(t, "unseated", world.Vector3{X: 5000})
	missing := f.track(t, "missing", world.Vector3{X: -5000})
	f.world.Unseat(unseated.Driver)
	f.world.Despawn(missing.Driver)

	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, Result{Orphaned: 2}, res)
	assert.Equal(t, []string{"unseated", "missing"}, ids(f.registry))
	assert.True(t, f.world.Exists(unseated.Vehicle))
	assert.True(t, f.world.Exists(unseated.Driver))
	assert.True(t, f.world.Exists(missing.Vehicle))
}

func TestSweep_OrphanIsPrunedOnceVehicleGone(t *testing.T) {
	f := newFixture()
	e := f.track(t, "orphan", world.Vector3{X: 5000})
	f.world.Unseat(e.Driver)
	require.Equal(t, Result{Orphaned: 1}, f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry))

	f.world.Despawn(e.Vehicle)
	assert.Equal(t, Result{Lost: 1}, f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry))
	assert.Zero(t, f.registry.Len())
}

func TestSweep_PreservesOrderOfSurvivors(t *testing.T) {
	f := newFixture()
	for i, x := range []float64{100, 2000, 200, 3000, 300} {
		f.track(t, string(rune('a'+i)), world.Vector3{X: x})
	}

	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, 2, res.Despawned)
	assert.Equal(t, []string{"a", "c", "e"}, ids(f.registry))
}

func TestSweep_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.track(t, "a", world.Vector3{X: 100})
	gone := f.track(t, "b", world.Vector3{X: 100})
	f.track(t, "c", world.Vector3{X: 4000})
	orphan := f.track(t, "d", world.Vector3{X: 100})
	f.world.Despawn(gone.Vehicle)
	f.world.Unseat(orphan.Driver)

	first := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)
	after := ids(f.registry)
	vehicles := f.world.Count(simworld.KindVehicle)

	second := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, Result{Lost: 1, Despawned: 1, Orphaned: 1}, first)
	assert.Equal(t, Result{Orphaned: 1}, second)
	assert.Equal(t, after, ids(f.registry))
	assert.Equal(t, vehicles, f.world.Count(simworld.KindVehicle))
}

func TestSweep_NoDeadVehiclesAfterSweep(t *testing.T) {
	f := newFixture()
	for i := 0; i < 20; i++ {
		e := f.track(t, string(rune('a'+i)), world.Vector3{X: float64(i * 100)})
		switch i % 4 {
		case 0:
			f.world.Despawn(e.Vehicle)
		case 1:
			f.world.Unseat(e.Driver)
		}
	}

	f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)

	for _, e := range f.registry.All() {
		assert.True(t, f.world.Exists(e.Vehicle), "entity %s", e.ID)
	}
}

// blindHost cannot report vehicle positions: the read goes through a native
// adapter whose host call fails.
type blindHost struct {
	*simworld.World
	host *native.Adapter
}

func (b blindHost) Position(h world.Handle) (world.Vector3, bool) {
	return b.host.Position(h)
}

func TestSweep_UnreadablePositionKeepsEntity(t *testing.T) {
	f := newFixture()
	far := f.track(t, "far", world.Vector3{X: 5000})

	broken := native.New(native.InvokerFunc(func(string, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("host busy")
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := New(Dependencies{World: blindHost{World: f.world, host: broken}, Journal: f.journal})

	res := s.Sweep(world.Vector3{}, cfg(), f.registry)

	assert.Equal(t, Result{Unreadable: 1}, res)
	assert.Equal(t, []string{"far"}, ids(f.registry))
	assert.True(t, f.world.Exists(far.Vehicle))
	assert.True(t, f.world.Exists(far.Driver))
	sum, _ := f.journal.Summary()
	assert.Zero(t, sum[storage.KindDespawned])
}

func TestSweep_CountsReactedOrphans(t *testing.T) {
	f := newFixture()
	scripted := f.track(t, "scripted", world.Vector3{X: 10})
	handed := f.track(t, "handed", world.Vector3{X: 20})
	handed.MarkReacted()
	f.world.Unseat(scripted.Driver)
	f.world.Unseat(handed.Driver)

	res := f.sweeper.Sweep(world.Vector3{}, cfg(), f.registry)
	assert.Equal(t, Result{Orphaned: 2, ReactedOrphans: 1}, res)
}
