// Package simworld is an in-memory world.Adapter. It backs the tests and the
// demo command; it has no physics beyond moving drivers along their heading.
package simworld

import (
	"math"
	"sync"
	"time"

	"github.com/morespeeders/extension/pkg/world"
)

// Kind distinguishes vehicles from peds.
type Kind int

const (
	KindVehicle Kind = iota
	KindPed
)

// Object is a simulated world object.
type Object struct {
	Handle   world.Handle
	Kind     Kind
	Model    string
	Position world.Vector3
	Heading  float64

	Persistent       bool
	Mission          bool
	BlockEvents      bool
	SeatedIn         world.Handle
	Siren            bool
	Driveable        bool
	CanBeDraggedOut  bool
	CanWrithe        bool
	Style            world.DrivingStyle
	Aggressiveness   float64
	Ability          float64
	Drive            *world.DriveTask
	CruiseSpeed      float64
	TasksCleared     int
	DeletedByRequest bool
}

// World is a thread-safe simulated host.
type World struct {
	mu      sync.Mutex
	next    world.Handle
	objects map[world.Handle]*Object
	deleted map[world.Handle]*Object

	subjectPos     world.Vector3
	subjectVehicle world.Handle

	unloadable   map[string]bool
	loadRequests []string
	released     []string

	// FailPedCreation makes CreatePed return false.
	FailPedCreation bool
	// FailVehicleCreation makes CreateVehicle return false.
	FailVehicleCreation bool
	// FailSeating makes SetIntoVehicle a no-op.
	FailSeating bool
	// SnapToStreet maps a point onto the road network. Identity when nil.
	SnapToStreet func(world.Vector3) world.Vector3
}

// New creates an empty world with the subject standing at the origin.
func New() *World {
	return &World{
		next:       1,
		objects:    make(map[world.Handle]*Object),
		deleted:    make(map[world.Handle]*Object),
		unloadable: make(map[string]bool),
	}
}

var _ world.Adapter = (*World)(nil)

// ForwardFromHeading returns the unit vector a heading (degrees) points at.
func ForwardFromHeading(heading float64) world.Vector3 {
	rad := heading * math.Pi / 180
	return world.Vector3{X: -math.Sin(rad), Y: math.Cos(rad)}
}

// ---- test controls ----

// SetSubjectPosition moves the subject on foot, or with its vehicle if it has one.
func (w *World) SetSubjectPosition(p world.Vector3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subjectPos = p
	if v, ok := w.objects[w.subjectVehicle]; ok {
		v.Position = p
	}
}

// GiveSubjectVehicle spawns a vehicle at the subject's position and seats the subject in it.
func (w *World) GiveSubjectVehicle(model string) world.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := w.addLocked(&Object{Kind: KindVehicle, Model: model, Position: w.subjectPos, Driveable: true})
	w.subjectVehicle = h
	return h
}

// LeaveVehicle puts the subject back on foot.
func (w *World) LeaveVehicle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subjectVehicle = 0
}

// SetSiren toggles a vehicle's siren.
func (w *World) SetSiren(vehicle world.Handle, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.objects[vehicle]; ok {
		v.Siren = on
	}
}

// MarkUnloadable makes RequestModel time out for a model.
func (w *World) MarkUnloadable(model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unloadable[model] = true
}

// AddVehicle places a bare vehicle, e.g. to block a spawn site.
func (w *World) AddVehicle(model string, p world.Vector3) world.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addLocked(&Object{Kind: KindVehicle, Model: model, Position: p, Driveable: true})
}

// Move teleports an object. Seated peds move with their vehicle.
func (w *World) Move(h world.Handle, p world.Vector3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.moveLocked(h, p)
}

// Despawn removes an object as the host would, without a Delete request.
func (w *World) Despawn(h world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		delete(w.objects, h)
		w.deleted[h] = o
	}
}

// Unseat pulls a ped out of whatever it is sitting in.
func (w *World) Unseat(ped world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.objects[ped]; ok {
		p.SeatedIn = 0
	}
}

// Object returns a snapshot of a live object.
func (w *World) Object(h world.Handle) (Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[h]
	if !ok {
		return Object{}, false
	}
	return *o, true
}

// Deleted returns a snapshot of an object that no longer exists.
func (w *World) Deleted(h world.Handle) (Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.deleted[h]
	if !ok {
		return Object{}, false
	}
	return *o, true
}

// Count returns the number of live objects of a kind.
func (w *World) Count(kind Kind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, o := range w.objects {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// LoadRequests returns every model name passed to RequestModel, in order.
func (w *World) LoadRequests() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.loadRequests...)
}

// Released returns every model name passed to ReleaseModel, in order.
func (w *World) Released() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.released...)
}

// Step advances every seated driver along its vehicle heading for dt.
func (w *World) Step(dt time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ped := range w.objects {
		if ped.Kind != KindPed || ped.SeatedIn == 0 {
			continue
		}
		veh, ok := w.objects[ped.SeatedIn]
		if !ok {
			continue
		}
		speed := ped.CruiseSpeed
		if ped.Drive != nil {
			speed = ped.Drive.Speed
		}
		fwd := ForwardFromHeading(veh.Heading)
		w.moveLocked(veh.Handle, veh.Position.Add(fwd.Scale(speed*dt.Seconds())))
	}
}

func (w *World) addLocked(o *Object) world.Handle {
	o.Handle = w.next
	w.next++
	w.objects[o.Handle] = o
	return o.Handle
}

func (w *World) moveLocked(h world.Handle, p world.Vector3) {
	o, ok := w.objects[h]
	if !ok {
		return
	}
	o.Position = p
	if o.Kind != KindVehicle {
		return
	}
	for _, other := range w.objects {
		if other.Kind == KindPed && other.SeatedIn == h {
			other.Position = p
		}
	}
	if h == w.subjectVehicle {
		w.subjectPos = p
	}
}

func (w *World) get(h world.Handle) (*Object, bool) {
	o, ok := w.objects[h]
	return o, ok
}

// ---- world.Adapter ----

func (w *World) SubjectPosition() (world.Vector3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subjectPos, true
}

func (w *World) SubjectVehicle() (world.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.objects[w.subjectVehicle]; !ok {
		return 0, false
	}
	return w.subjectVehicle, true
}

func (w *World) IsSirenOn(vehicle world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.get(vehicle)
	return ok && o.Siren
}

func (w *World) Exists(h world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.objects[h]
	return ok
}

func (w *World) Position(h world.Handle) (world.Vector3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.get(h); ok {
		return o.Position, true
	}
	return world.Vector3{}, false
}

func (w *World) ForwardVector(h world.Handle) world.Vector3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.get(h); ok {
		return ForwardFromHeading(o.Heading)
	}
	return world.Vector3{}
}

func (w *World) NextPositionOnStreet(p world.Vector3) world.Vector3 {
	if w.SnapToStreet != nil {
		return w.SnapToStreet(p)
	}
	return p
}

func (w *World) ClosestVehicle(p world.Vector3, radius float64) (world.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := world.Handle(0)
	bestDist := math.Inf(1)
	for h, o := range w.objects {
		if o.Kind != KindVehicle {
			continue
		}
		if d := o.Position.DistanceTo(p); d <= radius && d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, best.Valid()
}

func (w *World) IsInVehicle(ped, vehicle world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.get(ped)
	if !ok {
		return false
	}
	_, vok := w.get(vehicle)
	return vok && p.SeatedIn == vehicle
}

func (w *World) RequestModel(name string, _ time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadRequests = append(w.loadRequests, name)
	return !w.unloadable[name]
}

func (w *World) ReleaseModel(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = append(w.released, name)
}

func (w *World) CreateVehicle(model string, p world.Vector3, heading float64) (world.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailVehicleCreation {
		return 0, false
	}
	return w.addLocked(&Object{Kind: KindVehicle, Model: model, Position: p, Heading: heading, Driveable: true, Mission: true}), true
}

func (w *World) CreatePed(model string, p world.Vector3) (world.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailPedCreation {
		return 0, false
	}
	return w.addLocked(&Object{Kind: KindPed, Model: model, Position: p, CanWrithe: true, Mission: true}), true
}

func (w *World) Delete(h world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		o.DeletedByRequest = true
		delete(w.objects, h)
		w.deleted[h] = o
	}
}

func (w *World) SetIntoVehicle(ped, vehicle world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailSeating {
		return
	}
	p, ok := w.get(ped)
	v, vok := w.get(vehicle)
	if !ok || !vok {
		return
	}
	p.SeatedIn = vehicle
	p.Position = v.Position
}

func (w *World) SetPersistent(h world.Handle, persistent bool) {
	w.with(h, func(o *Object) { o.Persistent = persistent })
}

func (w *World) SetMissionEntity(h world.Handle, mission bool) {
	w.with(h, func(o *Object) { o.Mission = mission })
}

func (w *World) SetBlockPermanentEvents(ped world.Handle, block bool) {
	w.with(ped, func(o *Object) { o.BlockEvents = block })
}

func (w *World) DriveToCoord(ped, _ world.Handle, task world.DriveTask) {
	w.with(ped, func(o *Object) {
		t := task
		o.Drive = &t
		o.Style = task.Style
	})
}

func (w *World) ClearTasks(ped world.Handle) {
	w.with(ped, func(o *Object) {
		o.Drive = nil
		o.CruiseSpeed = 0
		o.TasksCleared++
	})
}

func (w *World) SetDrivingStyle(ped world.Handle, style world.DrivingStyle) {
	w.with(ped, func(o *Object) { o.Style = style })
}

func (w *World) CruiseWithVehicle(ped, _ world.Handle, speed float64, style world.DrivingStyle) {
	w.with(ped, func(o *Object) {
		o.Drive = nil
		o.CruiseSpeed = speed
		o.Style = style
	})
}

func (w *World) SetDriverAggressiveness(ped world.Handle, aggressiveness float64) {
	w.with(ped, func(o *Object) { o.Aggressiveness = aggressiveness })
}

func (w *World) SetDriverAbility(ped world.Handle, ability float64) {
	w.with(ped, func(o *Object) { o.Ability = ability })
}

func (w *World) SetCanBeDraggedOut(ped world.Handle, can bool) {
	w.with(ped, func(o *Object) { o.CanBeDraggedOut = can })
}

func (w *World) SetCanWrithe(ped world.Handle, can bool) {
	w.with(ped, func(o *Object) { o.CanWrithe = can })
}

func (w *World) SetDriveable(vehicle world.Handle, driveable bool) {
	w.with(vehicle, func(o *Object) { o.Driveable = driveable })
}

func (w *World) with(h world.Handle, fn func(*Object)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		fn(o)
	}
}
