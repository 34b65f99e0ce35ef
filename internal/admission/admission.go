// Package admission decides where and whether to spawn a new vehicle and
// driver, and performs the spawn with compensating deletes on partial failure.
package admission

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/registry"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
)

const (
	DriverModel = "a_m_m_business_01"

	VehicleModelTimeout = 2000 * time.Millisecond
	DriverModelTimeout  = 500 * time.Millisecond

	// OccupiedRadius is how close another vehicle may be to a spawn site.
	OccupiedRadius = 5.0

	DriveDistance  = 2000.0
	DriveSpeedMPH  = 120.0
	DriveStopRange = 10.0
)

// Dependencies holds everything the controller needs.
type Dependencies struct {
	World    world.Adapter
	Notifier world.Notifier  // optional
	Journal  storage.Backend // optional
	Logger   *slog.Logger    // optional

	// Rand drives candidate order and model choice. Seeded randomly when nil.
	Rand  *rand.Rand
	Clock func() time.Time
}

// Controller performs spawn attempts.
type Controller struct {
	world    world.Adapter
	notifier world.Notifier
	journal  storage.Backend
	logger   *slog.Logger
	rand     *rand.Rand
	now      func() time.Time
}

func New(deps Dependencies) *Controller {
	c := &Controller{
		world:    deps.World,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		logger:   deps.Logger,
		rand:     deps.Rand,
		now:      deps.Clock,
	}
	if c.journal == nil {
		c.journal = storage.Noop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.rand == nil {
		c.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// TrySpawn picks a random candidate within the configured distance band of ref
// and attempts exactly one spawn there. On success the pair is added to reg.
func (c *Controller) TrySpawn(ref world.Vector3, cfg config.Config, cat *catalog.Catalog, reg *registry.Registry) Outcome {
	if !cfg.SpawningEnabled() {
		return OutcomeDisabled
	}

	candidate, ok := c.pickCandidate(ref, cfg, cat)
	if !ok {
		c.logger.Debug("no spawn point in range", "reference", ref.String())
		return OutcomeNoCandidate
	}

	model := cfg.Models[c.rand.IntN(len(cfg.Models))]
	entity, outcome := c.spawn(candidate, model)
	if outcome != OutcomeSpawned {
		c.logger.Debug("spawn aborted", "outcome", outcome.String(), "model", model, "site", candidate.Position.String())
		c.record(&storage.Event{
			Kind:     storage.KindAborted,
			Model:    model,
			Reason:   outcome.String(),
			Position: candidate.Position,
			Distance: candidate.Position.DistanceTo(ref),
		})
		return outcome
	}

	reg.Add(entity)
	pos, ok := c.world.Position(entity.Vehicle)
	if !ok {
		pos = candidate.Position
	}
	c.logger.Info("vehicle spawned",
		"id", entity.ID,
		"model", model,
		"vehicle", entity.Vehicle,
		"driver", entity.Driver,
		"position", pos.String(),
	)
	c.record(&storage.Event{
		Kind:     storage.KindSpawned,
		EntityID: entity.ID,
		Model:    model,
		Position: pos,
		Distance: pos.DistanceTo(ref),
	})

	if cfg.ShowNotifications && c.notifier != nil {
		c.notifier.Notify(fmt.Sprintf("AI Vehicle Spawned\nModel: %s", model))
	}
	return OutcomeSpawned
}

// pickCandidate walks a random permutation of the catalog and returns the
// first candidate inside [MinDistance, MaxDistance].
func (c *Controller) pickCandidate(ref world.Vector3, cfg config.Config, cat *catalog.Catalog) (catalog.Candidate, bool) {
	for _, i := range c.rand.Perm(cat.Len()) {
		cand := cat.At(i)
		d := cand.Position.DistanceTo(ref)
		if d >= cfg.MinDistance && d <= cfg.MaxDistance {
			return cand, true
		}
	}
	return catalog.Candidate{}, false
}

func (c *Controller) spawn(cand catalog.Candidate, model string) (*registry.TrackedEntity, Outcome) {
	w := c.world

	site := w.NextPositionOnStreet(cand.Position)
	if other, busy := w.ClosestVehicle(site, OccupiedRadius); busy {
		c.logger.Debug("spawn site occupied", "site", site.String(), "by", other)
		return nil, OutcomeOccupied
	}

	if !w.RequestModel(model, VehicleModelTimeout) {
		c.logger.Warn("vehicle model did not load", "model", model, "timeout", VehicleModelTimeout)
		return nil, OutcomeModelTimeout
	}
	vehicle, ok := w.CreateVehicle(model, site, cand.Heading)
	w.ReleaseModel(model)
	if !ok || !w.Exists(vehicle) {
		return nil, OutcomeVehicleFailed
	}

	at, ok := w.Position(vehicle)
	if !ok {
		at = site
	}
	driver, ok := c.createDriver(at)
	if !ok {
		w.Delete(vehicle)
		return nil, OutcomeDriverFailed
	}

	w.SetIntoVehicle(driver, vehicle)
	if !w.IsInVehicle(driver, vehicle) {
		w.Delete(driver)
		w.Delete(vehicle)
		return nil, OutcomeSeatFailed
	}

	w.SetPersistent(vehicle, true)
	w.SetPersistent(driver, true)
	w.SetBlockPermanentEvents(driver, true)

	pos, ok := w.Position(vehicle)
	if !ok {
		pos = site
	}
	dest := w.NextPositionOnStreet(pos.Add(w.ForwardVector(vehicle).Scale(DriveDistance)))
	w.DriveToCoord(driver, vehicle, world.DriveTask{
		Destination: dest,
		Speed:       world.MPHToMetersPerSecond(DriveSpeedMPH),
		Style:       world.DrivingStyleHighway,
		StopRange:   DriveStopRange,
	})

	return &registry.TrackedEntity{
		ID:        uuid.NewString(),
		Vehicle:   vehicle,
		Driver:    driver,
		Model:     model,
		SpawnedAt: c.now(),
	}, OutcomeSpawned
}

func (c *Controller) createDriver(at world.Vector3) (world.Handle, bool) {
	w := c.world
	if !w.RequestModel(DriverModel, DriverModelTimeout) {
		c.logger.Warn("driver model did not load", "model", DriverModel, "timeout", DriverModelTimeout)
		return 0, false
	}
	defer w.ReleaseModel(DriverModel)

	driver, ok := w.CreatePed(DriverModel, at)
	if !ok || !w.Exists(driver) {
		return 0, false
	}
	return driver, true
}

func (c *Controller) record(e *storage.Event) {
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	if err := c.journal.RecordLifecycle(e); err != nil {
		c.logger.Warn("journal write failed", "kind", e.Kind, "error", err)
	}
}
