// Package demo drives a full extension session against the simulated world.
package demo

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/morespeeders/extension/internal/app"
	"github.com/morespeeders/extension/internal/catalog"
	"github.com/morespeeders/extension/internal/monitor"
	"github.com/morespeeders/extension/internal/simworld"
	"github.com/morespeeders/extension/pkg/world"
)

// Models are used when the config file does not name any.
var Models = []string{"sultan", "banshee", "comet2", "elegy2", "jester"}

// Options configures Run.
type Options struct {
	Folder string
	Ticks  int
	Step   time.Duration // simulated time per tick, default 100ms
	Seed   uint64
	// Subject overrides the starting position, which defaults to 400 m east
	// of the first catalog entry.
	Subject *world.Vector3
	Out     io.Writer
	Log     io.Writer // log output before the session file opens
}

// Result is printed at the end of the run.
type Result struct {
	Report   monitor.Report `json:"report"`
	Notices  []string       `json:"notices"`
	Vehicles int            `json:"vehicles"`
}

// Run ticks the controller opts.Ticks times. Halfway through the subject gets
// into a vehicle with its siren on, so tracked vehicles hand off to traffic.
func Run(opts Options) (Result, error) {
	if opts.Ticks <= 0 {
		opts.Ticks = 600
	}
	if opts.Step <= 0 {
		opts.Step = 100 * time.Millisecond
	}

	sim := simworld.New()
	cat := catalog.Default()
	switch {
	case opts.Subject != nil:
		sim.SetSubjectPosition(*opts.Subject)
	case cat.Len() > 0:
		sim.SetSubjectPosition(cat.At(0).Position.Add(world.Vector3{X: 400}))
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := app.New(app.Options{
		Folder:  opts.Folder,
		Version: "demo",
		World:   sim,
		Catalog: cat,
		Models:  Models,
		Console: opts.Log,
		Rand:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		Now:     func() time.Time { return now },
	})
	if err != nil {
		return Result{}, err
	}

	for i := range opts.Ticks {
		if i == opts.Ticks/2 {
			v := sim.GiveSubjectVehicle("police")
			sim.SetSiren(v, true)
		}
		now = now.Add(opts.Step)
		sim.Step(opts.Step)
		a.Controller.Tick(now)
	}

	res := Result{
		Report:   a.Monitor.Report(),
		Vehicles: sim.Count(simworld.KindVehicle),
	}
	if err := a.Close(); err != nil {
		return res, fmt.Errorf("closing session: %w", err)
	}
	res.Notices = a.Workers.Outbox().Drain(0)

	if opts.Out != nil {
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return res, err
		}
	}
	return res, nil
}
