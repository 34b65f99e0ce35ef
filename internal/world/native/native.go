// Package native implements world.Adapter on top of host natives. The host
// shim registers an Invoker that executes a named native with JSON arguments
// and returns its JSON-encoded result.
package native

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/morespeeders/extension/pkg/world"
)

// Native names understood by the host shim.
const (
	PlayerPosition           = "GET_PLAYER_POSITION"
	PlayerVehicle            = "GET_PLAYER_VEHICLE"
	IsVehicleSirenOn         = "IS_VEHICLE_SIREN_ON"
	DoesEntityExist          = "DOES_ENTITY_EXIST"
	GetEntityCoords          = "GET_ENTITY_COORDS"
	GetEntityForwardVector   = "GET_ENTITY_FORWARD_VECTOR"
	NextPositionOnStreet     = "GET_NEXT_POSITION_ON_STREET"
	GetClosestVehicle        = "GET_CLOSEST_VEHICLE"
	IsPedInVehicle           = "IS_PED_IN_VEHICLE"
	RequestModel             = "REQUEST_MODEL"
	HasModelLoaded           = "HAS_MODEL_LOADED"
	SetModelAsNoLongerNeeded = "SET_MODEL_AS_NO_LONGER_NEEDED"
	CreateVehicle            = "CREATE_VEHICLE"
	CreatePed                = "CREATE_PED"
	DeleteEntity             = "DELETE_ENTITY"
	SetPedIntoVehicle        = "SET_PED_INTO_VEHICLE"
	SetEntityPersistent      = "SET_ENTITY_PERSISTENT"
	SetEntityAsMissionEntity = "SET_ENTITY_AS_MISSION_ENTITY"
	SetBlockPermanentEvents  = "SET_BLOCKING_OF_NON_TEMPORARY_EVENTS"
	TaskDriveToCoord         = "TASK_VEHICLE_DRIVE_TO_COORD"
	ClearPedTasks            = "CLEAR_PED_TASKS"
	SetDriveTaskDrivingStyle = "SET_DRIVE_TASK_DRIVING_STYLE"
	TaskCruiseWithVehicle    = "TASK_VEHICLE_DRIVE_WANDER"
	SetDriverAggressiveness  = "SET_DRIVER_AGGRESSIVENESS"
	SetDriverAbility         = "SET_DRIVER_ABILITY"
	SetCanBeDraggedOut       = "SET_PED_CAN_BE_DRAGGED_OUT"
	SetCanWrithe             = "SET_PED_CAN_WRITHE"
	SetVehicleDriveable      = "SET_VEHICLE_UNDRIVEABLE"
)

// ModelPollInterval is how often RequestModel checks whether a model has loaded.
const ModelPollInterval = 10 * time.Millisecond

// ErrNoInvoker is returned when a native is called before the host registered its invoker.
var ErrNoInvoker = errors.New("no native invoker registered")

// Invoker runs one native. args is a JSON array.
type Invoker interface {
	Invoke(name string, args json.RawMessage) (json.RawMessage, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(name string, args json.RawMessage) (json.RawMessage, error)

// Invoke calls f(name, args).
func (f InvokerFunc) Invoke(name string, args json.RawMessage) (json.RawMessage, error) {
	return f(name, args)
}

type invokerBox struct{ Invoker }

// Adapter is a world.Adapter backed by host natives. Failed calls are logged
// and reported as the object missing or the action failing.
type Adapter struct {
	invoker atomic.Pointer[invokerBox]
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

var _ world.Adapter = (*Adapter)(nil)

// New creates an adapter. The invoker may be nil and set later with SetInvoker.
// A nil logger means slog.Default at the time of each call.
func New(inv Invoker, logger *slog.Logger) *Adapter {
	a := &Adapter{logger: logger, now: time.Now, sleep: time.Sleep}
	if inv != nil {
		a.SetInvoker(inv)
	}
	return a
}

// SetInvoker installs the host's invoker.
func (a *Adapter) SetInvoker(inv Invoker) {
	a.invoker.Store(&invokerBox{inv})
}

// Ready reports whether an invoker is installed.
func (a *Adapter) Ready() bool {
	return a.invoker.Load() != nil
}

// Call runs a native and returns its raw result.
func (a *Adapter) Call(name string, args ...any) (json.RawMessage, error) {
	box := a.invoker.Load()
	if box == nil {
		return nil, ErrNoInvoker
	}
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%s: encode args: %w", name, err)
	}
	out, err := box.Invoke(name, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, world.ErrNativeFailed, err)
	}
	return out, nil
}

func (a *Adapter) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

func (a *Adapter) exec(name string, args ...any) bool {
	if _, err := a.Call(name, args...); err != nil {
		a.log().Warn("native call failed", "native", name, "error", err)
		return false
	}
	return true
}

func decode[T any](a *Adapter, name string, args ...any) (T, bool) {
	var v T
	out, err := a.Call(name, args...)
	if err != nil {
		a.log().Warn("native call failed", "native", name, "error", err)
		return v, false
	}
	if len(out) == 0 || string(out) == "null" {
		return v, false
	}
	if err := json.Unmarshal(out, &v); err != nil {
		a.log().Warn("native result malformed", "native", name, "result", string(out), "error", err)
		return v, false
	}
	return v, true
}

func (a *Adapter) vector(name string, args ...any) (world.Vector3, bool) {
	xyz, ok := decode[[3]float64](a, name, args...)
	if !ok {
		return world.Vector3{}, false
	}
	return world.Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, true
}

func (a *Adapter) boolean(name string, args ...any) bool {
	b, _ := decode[bool](a, name, args...)
	return b
}

func (a *Adapter) handle(name string, args ...any) (world.Handle, bool) {
	h, ok := decode[world.Handle](a, name, args...)
	if !ok || !h.Valid() {
		return 0, false
	}
	return h, true
}

func xyz(v world.Vector3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func (a *Adapter) SubjectPosition() (world.Vector3, bool) {
	return a.vector(PlayerPosition)
}

func (a *Adapter) SubjectVehicle() (world.Handle, bool) {
	return a.handle(PlayerVehicle)
}

func (a *Adapter) IsSirenOn(vehicle world.Handle) bool {
	return a.boolean(IsVehicleSirenOn, vehicle)
}

func (a *Adapter) Exists(h world.Handle) bool {
	if !h.Valid() {
		return false
	}
	return a.boolean(DoesEntityExist, h)
}

func (a *Adapter) Position(h world.Handle) (world.Vector3, bool) {
	return a.vector(GetEntityCoords, h)
}

// ForwardVector returns the zero vector when the host cannot answer.
func (a *Adapter) ForwardVector(h world.Handle) world.Vector3 {
	v, _ := a.vector(GetEntityForwardVector, h)
	return v
}

// NextPositionOnStreet returns p unchanged when the host cannot snap it.
func (a *Adapter) NextPositionOnStreet(p world.Vector3) world.Vector3 {
	v, ok := decode[[3]float64](a, NextPositionOnStreet, xyz(p))
	if !ok {
		return p
	}
	return world.Vector3{X: v[0], Y: v[1], Z: v[2]}
}

func (a *Adapter) ClosestVehicle(p world.Vector3, radius float64) (world.Handle, bool) {
	return a.handle(GetClosestVehicle, xyz(p), radius)
}

func (a *Adapter) IsInVehicle(ped, vehicle world.Handle) bool {
	return a.boolean(IsPedInVehicle, ped, vehicle)
}

// RequestModel asks the host to stream a model in and polls until it has
// loaded or timeout elapses.
func (a *Adapter) RequestModel(name string, timeout time.Duration) bool {
	if !a.exec(RequestModel, name) {
		return false
	}
	deadline := a.now().Add(timeout)
	for {
		if a.boolean(HasModelLoaded, name) {
			return true
		}
		if !a.now().Before(deadline) {
			a.log().Debug("model load timed out", "model", name, "timeout", timeout)
			return false
		}
		a.sleep(ModelPollInterval)
	}
}

func (a *Adapter) ReleaseModel(name string) {
	a.exec(SetModelAsNoLongerNeeded, name)
}

func (a *Adapter) CreateVehicle(model string, p world.Vector3, heading float64) (world.Handle, bool) {
	return a.handle(CreateVehicle, model, xyz(p), heading)
}

func (a *Adapter) CreatePed(model string, p world.Vector3) (world.Handle, bool) {
	return a.handle(CreatePed, model, xyz(p))
}

func (a *Adapter) Delete(h world.Handle) {
	if h.Valid() {
		a.exec(DeleteEntity, h)
	}
}

func (a *Adapter) SetIntoVehicle(ped, vehicle world.Handle) {
	a.exec(SetPedIntoVehicle, ped, vehicle, -1)
}

func (a *Adapter) SetPersistent(h world.Handle, persistent bool) {
	a.exec(SetEntityPersistent, h, persistent)
}

func (a *Adapter) SetMissionEntity(h world.Handle, mission bool) {
	a.exec(SetEntityAsMissionEntity, h, mission, true)
}

func (a *Adapter) SetBlockPermanentEvents(ped world.Handle, block bool) {
	a.exec(SetBlockPermanentEvents, ped, block)
}

func (a *Adapter) DriveToCoord(ped, vehicle world.Handle, task world.DriveTask) {
	a.exec(TaskDriveToCoord, ped, vehicle, xyz(task.Destination), task.Speed, uint32(task.Style), task.StopRange)
}

func (a *Adapter) ClearTasks(ped world.Handle) {
	a.exec(ClearPedTasks, ped)
}

func (a *Adapter) SetDrivingStyle(ped world.Handle, style world.DrivingStyle) {
	a.exec(SetDriveTaskDrivingStyle, ped, uint32(style))
}

func (a *Adapter) CruiseWithVehicle(ped, vehicle world.Handle, speed float64, style world.DrivingStyle) {
	a.exec(TaskCruiseWithVehicle, ped, vehicle, speed, uint32(style))
}

func (a *Adapter) SetDriverAggressiveness(ped world.Handle, aggressiveness float64) {
	a.exec(SetDriverAggressiveness, ped, aggressiveness)
}

func (a *Adapter) SetDriverAbility(ped world.Handle, ability float64) {
	a.exec(SetDriverAbility, ped, ability)
}

func (a *Adapter) SetCanBeDraggedOut(ped world.Handle, can bool) {
	a.exec(SetCanBeDraggedOut, ped, can)
}

func (a *Adapter) SetCanWrithe(ped world.Handle, can bool) {
	a.exec(SetCanWrithe, ped, can)
}

// SetDriveable maps onto the host's inverted "undriveable" flag.
func (a *Adapter) SetDriveable(vehicle world.Handle, driveable bool) {
	a.exec(SetVehicleDriveable, vehicle, !driveable)
}
