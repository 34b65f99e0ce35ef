// Package controller owns the poll loop: one tick detects the alert state,
// hands drivers off, reconciles the registry and admits new spawns.
package controller

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/morespeeders/extension/internal/admission"
	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/logging"
	"github.com/morespeeders/extension/internal/reaction"
	"github.com/morespeeders/extension/internal/reconcile"
	"github.com/morespeeders/extension/internal/registry"
	"github.com/morespeeders/extension/internal/session"
	"github.com/morespeeders/extension/internal/storage"
	"github.com/morespeeders/extension/pkg/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReferenceState is recomputed at the start of every tick.
type ReferenceState struct {
	Position            world.Vector3
	AlertActive         bool
	PreviousAlertActive bool
}

// Dependencies holds all dependencies for the controller
type Dependencies struct {
	World    world.Adapter
	Notifier world.Notifier // optional
	Config   config.Config
	Catalog  *catalog.Catalog // defaults to catalog.Default()
	Journal  storage.Backend  // optional
	Session  *session.Context // optional, created when nil
	Logger   *slog.Logger     // optional

	// TickLog, when set, is advanced every tick so log records carry the tick number.
	TickLog *logging.SessionContext
	Meter   metric.Meter
	Rand    *rand.Rand
	Clock   func() time.Time
}

// Controller is the explicit context for one session: it owns the registry
// and the spawn timer. Tick must not be called concurrently with itself;
// calls are serialized internally.
type Controller struct {
	world   world.Adapter
	cfg     config.Config
	catalog *catalog.Catalog
	session *session.Context
	tickLog *logging.SessionContext
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics

	admission *admission.Controller
	reaction  *reaction.Engine
	sweeper   *reconcile.Sweeper

	tickMu           sync.Mutex
	registry         *registry.Registry
	state            ReferenceState
	ticks            uint64
	lastSpawnAttempt time.Time
	lastOutcome      string
}

// New wires a controller from its dependencies.
func New(deps Dependencies) (*Controller, error) {
	c := &Controller{
		world:    deps.World,
		cfg:      deps.Config,
		catalog:  deps.Catalog,
		session:  deps.Session,
		tickLog:  deps.TickLog,
		logger:   deps.Logger,
		now:      deps.Clock,
		registry: registry.New(),
	}
	if c.catalog == nil {
		c.catalog = catalog.Default()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.session == nil {
		c.session = session.NewContext(c.now())
	}

	m, err := newMetrics(deps.Meter, c.session)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	c.admission = admission.New(admission.Dependencies{
		World:    deps.World,
		Notifier: deps.Notifier,
		Journal:  deps.Journal,
		Logger:   c.logger.With("component", "admission"),
		Rand:     deps.Rand,
		Clock:    c.now,
	})
	c.reaction = reaction.New(reaction.Dependencies{
		World:    deps.World,
		Notifier: deps.Notifier,
		Journal:  deps.Journal,
		Logger:   c.logger.With("component", "reaction"),
		Clock:    c.now,
	})
	c.sweeper = reconcile.New(reconcile.Dependencies{
		World:   deps.World,
		Journal: deps.Journal,
		Logger:  c.logger.With("component", "reconcile"),
		Clock:   c.now,
	})

	return c, nil
}

// Session returns the session the controller publishes to.
func (c *Controller) Session() *session.Context {
	return c.session
}

// Tick runs one iteration of the loop at time now.
func (c *Controller) Tick(now time.Time) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	ctx := context.Background()
	start := time.Now()

	c.ticks++
	if c.tickLog != nil {
		c.tickLog.SetTick(c.ticks)
	}

	ref, ok := c.world.SubjectPosition()
	if !ok {
		c.logger.Warn("subject position unavailable, skipping tick", "tick", c.ticks)
		c.metrics.skipped.Add(ctx, 1)
		return
	}
	c.state.PreviousAlertActive = c.state.AlertActive
	c.state.AlertActive = c.alertActive()
	c.state.Position = ref

	if c.state.AlertActive != c.state.PreviousAlertActive {
		c.logger.Info("alert state changed", "active", c.state.AlertActive)
	}

	if c.state.AlertActive {
		if n := c.reaction.Run(ref, c.cfg, c.registry); n > 0 {
			c.metrics.reacted.Add(ctx, int64(n))
		}
	}

	res := c.sweeper.Sweep(ref, c.cfg, c.registry)
	if res.Lost > 0 {
		c.metrics.removed.Add(ctx, int64(res.Lost), metric.WithAttributes(attribute.String("reason", "lost")))
	}
	if res.Despawned > 0 {
		c.metrics.removed.Add(ctx, int64(res.Despawned), metric.WithAttributes(attribute.String("reason", "despawned")))
	}
	if n := res.Removed(); n > 0 {
		c.logger.Debug("registry pruned", "removed", n, "remaining", c.registry.Len())
	}

	if c.spawnDue(now) {
		out := c.admission.TrySpawn(ref, c.cfg, c.catalog, c.registry)
		c.lastSpawnAttempt = now
		c.lastOutcome = out.String()
		c.metrics.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", out.String()),
			attribute.Bool("attempted", out.Attempted()),
		))
	}

	counts := c.registry.Count()
	c.session.Publish(session.Status{
		Tick:             c.ticks,
		At:               now,
		Reference:        ref,
		AlertActive:      c.state.AlertActive,
		Tracked:          counts.Tracked,
		Reacted:          counts.Reacted,
		Orphaned:         res.Orphaned,
		Scripted:         counts.Tracked - counts.Reacted - (res.Orphaned - res.ReactedOrphans),
		LastOutcome:      c.lastOutcome,
		LastSpawnAttempt: c.lastSpawnAttempt,
	})

	c.metrics.ticks.Add(ctx, 1)
	c.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}

// spawnDue reports whether the spawn interval has elapsed. The first tick is
// always due.
func (c *Controller) spawnDue(now time.Time) bool {
	return c.lastSpawnAttempt.IsZero() || now.Sub(c.lastSpawnAttempt) >= c.cfg.SpawnInterval
}

// alertActive is true while the subject sits in a vehicle with its siren on.
func (c *Controller) alertActive() bool {
	v, ok := c.world.SubjectVehicle()
	if !ok || !c.world.Exists(v) {
		return false
	}
	return c.world.IsSirenOn(v)
}

// Run ticks every interval until ctx is done. It is for hosts that do not
// drive Tick from their own update callback.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("poll loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("poll loop stopped", "ticks", c.Ticks())
			return ctx.Err()
		case <-ticker.C:
			c.Tick(c.now())
		}
	}
}

// Ticks returns the number of completed ticks.
func (c *Controller) Ticks() uint64 {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	return c.ticks
}

// State returns the reference state computed by the last tick.
func (c *Controller) State() ReferenceState {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	return c.state
}

// Entities returns a snapshot of the tracked entities.
func (c *Controller) Entities() []registry.TrackedEntity {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	all := c.registry.All()
	out := make([]registry.TrackedEntity, len(all))
	for i, e := range all {
		out[i] = *e
	}
	return out
}
