// pkg/world/adapter.go
package world

import (
	"errors"
	"time"
)

// DriveTask describes a long-range scripted drive to a destination.
type DriveTask struct {
	Destination Vector3
	Speed       float64 // m/s
	Style       DrivingStyle
	StopRange   float64
}

// Adapter is everything the traffic controller needs from the host world.
// Every method is expected to be cheap and to return promptly; RequestModel is the
// only call allowed to wait, and never for longer than its timeout.
//
// Handles passed in may refer to objects the host has already removed. Implementations
// must tolerate that and report the object as missing rather than fail.
type Adapter interface {
	// Subject. A false ok from a position read means the host could not answer,
	// not that the object is at the origin.
	SubjectPosition() (Vector3, bool)
	SubjectVehicle() (Handle, bool)
	IsSirenOn(vehicle Handle) bool

	// Queries
	Exists(h Handle) bool
	Position(h Handle) (Vector3, bool)
	ForwardVector(h Handle) Vector3
	NextPositionOnStreet(p Vector3) Vector3
	ClosestVehicle(p Vector3, radius float64) (Handle, bool)
	IsInVehicle(ped, vehicle Handle) bool

	// Resources
	RequestModel(name string, timeout time.Duration) bool
	ReleaseModel(name string)

	// Lifecycle
	CreateVehicle(model string, p Vector3, heading float64) (Handle, bool)
	CreatePed(model string, p Vector3) (Handle, bool)
	Delete(h Handle)
	SetIntoVehicle(ped, vehicle Handle)
	SetPersistent(h Handle, persistent bool)
	SetMissionEntity(h Handle, mission bool)

	// Driver behavior
	SetBlockPermanentEvents(ped Handle, block bool)
	DriveToCoord(ped, vehicle Handle, task DriveTask)
	ClearTasks(ped Handle)
	SetDrivingStyle(ped Handle, style DrivingStyle)
	CruiseWithVehicle(ped, vehicle Handle, speed float64, style DrivingStyle)
	SetDriverAggressiveness(ped Handle, aggressiveness float64)
	SetDriverAbility(ped Handle, ability float64)
	SetCanBeDraggedOut(ped Handle, can bool)
	SetCanWrithe(ped Handle, can bool)
	SetDriveable(vehicle Handle, driveable bool)
}

// Notifier shows a short message to the user. Fire and forget.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) {
	f(message)
}

// ErrNativeFailed is reported by host-backed adapters when a native call
// could not be completed.
var ErrNativeFailed = errors.New("native call failed")
