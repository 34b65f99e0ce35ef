// Package reaction hands scripted drivers back to ambient traffic when the
// subject runs an emergency vehicle nearby.
package reaction

import (
	"log/slog"
	"time"

	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/registry"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
)

const (
	CruiseSpeed          = 25.0
	DriverAggressiveness = 0.0
	DriverAbility        = 0.5

	Notification = "AI switched to normal traffic behavior"
)

type Dependencies struct {
	World    world.Adapter
	Notifier world.Notifier  // optional
	Journal  storage.Backend // optional
	Logger   *slog.Logger    // optional
	Clock    func() time.Time
}

// Engine applies the handoff sequence.
type Engine struct {
	world    world.Adapter
	notifier world.Notifier
	journal  storage.Backend
	logger   *slog.Logger
	now      func() time.Time
}

func New(deps Dependencies) *Engine {
	e := &Engine{
		world:    deps.World,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if e.journal == nil {
		e.journal = storage.Noop{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Run hands off every eligible entity within ReactionDistance of ref and
// returns how many were handed off. The caller only invokes it while the
// alert is active; it re-scans the whole registry each time.
func (e *Engine) Run(ref world.Vector3, cfg config.Config, reg *registry.Registry) int {
	n := 0
	for _, ent := range reg.All() {
		if !e.eligible(ent) {
			continue
		}
		pos, ok := e.world.Position(ent.Vehicle)
		if !ok {
			continue
		}
		dist := pos.DistanceTo(ref)
		if dist > cfg.ReactionDistance {
			continue
		}

		e.handOff(ent)
		ent.MarkReacted()
		n++

		e.logger.Info("driver handed to ambient traffic", "id", ent.ID, "vehicle", ent.Vehicle, "distance", dist)
		if err := e.journal.RecordLifecycle(&storage.Event{
			Time:     e.now(),
			Kind:     storage.KindHandedOff,
			EntityID: ent.ID,
			Model:    ent.Model,
			Position: pos,
			Distance: dist,
		}); err != nil {
			e.logger.Warn("journal write failed", "kind", storage.KindHandedOff, "error", err)
		}

		if cfg.ShowNotifications && e.notifier != nil {
			e.notifier.Notify(Notification)
		}
	}
	return n
}

// eligible skips entities already handed off, entities the host removed, and
// orphans whose driver is not in the vehicle.
func (e *Engine) eligible(ent *registry.TrackedEntity) bool {
	if ent.HasReacted {
		return false
	}
	w := e.world
	return w.Exists(ent.Vehicle) && w.Exists(ent.Driver) && w.IsInVehicle(ent.Driver, ent.Vehicle)
}

func (e *Engine) handOff(ent *registry.TrackedEntity) {
	w := e.world
	driver, vehicle := ent.Driver, ent.Vehicle

	w.ClearTasks(driver)
	w.SetDrivingStyle(driver, world.DrivingStyleNormal)
	w.SetMissionEntity(driver, false)
	w.SetMissionEntity(vehicle, false)
	w.CruiseWithVehicle(driver, vehicle, CruiseSpeed, world.DrivingStyleNormal)
	w.SetDriverAggressiveness(driver, DriverAggressiveness)
	w.SetDriverAbility(driver, DriverAbility)
	w.SetDriveable(vehicle, true)
	w.SetCanBeDraggedOut(driver, true)
	w.SetCanWrithe(driver, false)
}
