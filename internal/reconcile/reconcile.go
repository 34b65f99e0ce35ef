// Package reconcile prunes tracked entities that the host removed or that
// drifted out of range of the subject.
package reconcile

import (
	"log/slog"
	"time"

	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/registry"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
)

// Result tallies one sweep.
type Result struct {
	// Lost entities had their vehicle removed by the host.
	Lost int `json:"lost"`
	// Despawned entities drifted past MaxDistance and were deleted.
	Despawned int `json:"despawned"`
	// Orphaned entities were retained because their driver is missing or
	// not seated. They are never pruned by distance.
	Orphaned int `json:"orphaned"`
	// ReactedOrphans is the part of Orphaned already handed to ambient traffic.
	ReactedOrphans int `json:"reactedOrphans"`
	// Unreadable entities were retained because the host could not report
	// where their vehicle is.
	Unreadable int `json:"unreadable"`
}

// Removed returns how many entities left the registry.
func (r Result) Removed() int {
	return r.Lost + r.Despawned
}

type Dependencies struct {
	World   world.Adapter
	Journal storage.Backend // optional
	Logger  *slog.Logger    // optional
	Clock   func() time.Time
}

type Sweeper struct {
	world   world.Adapter
	journal storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

func New(deps Dependencies) *Sweeper {
	s := &Sweeper{
		world:   deps.World,
		journal: deps.Journal,
		logger:  deps.Logger,
		now:     deps.Clock,
	}
	if s.journal == nil {
		s.journal = storage.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Sweep walks the registry newest first. A pair whose driver is gone or out
// of the vehicle is left untouched, even when far away: such orphans stay in
// the registry until the host removes the vehicle.
func (s *Sweeper) Sweep(ref world.Vector3, cfg config.Config, reg *registry.Registry) Result {
	var res Result
	w := s.world

	reg.Reverse(func(i int, ent *registry.TrackedEntity) {
		if !w.Exists(ent.Vehicle) {
			reg.RemoveAt(i)
			res.Lost++
			s.logger.Debug("vehicle gone, dropping entity", "id", ent.ID, "vehicle", ent.Vehicle)
			s.record(storage.KindLost, ent, world.Vector3{}, 0)
			return
		}
		if !w.Exists(ent.Driver) || !w.IsInVehicle(ent.Driver, ent.Vehicle) {
			res.Orphaned++
			if ent.HasReacted {
				res.ReactedOrphans++
			}
			return
		}

		pos, ok := w.Position(ent.Vehicle)
		if !ok {
			res.Unreadable++
			s.logger.Debug("vehicle position unavailable, keeping entity", "id", ent.ID, "vehicle", ent.Vehicle)
			return
		}
		dist := pos.DistanceTo(ref)
		if dist <= cfg.MaxDistance {
			return
		}

		w.Delete(ent.Vehicle)
		w.Delete(ent.Driver)
		reg.RemoveAt(i)
		res.Despawned++
		s.logger.Debug("entity out of range, deleted", "id", ent.ID, "distance", dist)
		s.record(storage.KindDespawned, ent, pos, dist)
	})

	return res
}

func (s *Sweeper) record(kind storage.Kind, ent *registry.TrackedEntity, pos world.Vector3, dist float64) {
	err := s.journal.RecordLifecycle(&storage.Event{
		Time:     s.now(),
		Kind:     kind,
		EntityID: ent.ID,
		Model:    ent.Model,
		Position: pos,
		Distance: dist,
	})
	if err != nil {
		s.logger.Warn("journal write failed", "kind", kind, "error", err)
	}
}
