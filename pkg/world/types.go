// pkg/world/types.go
package world

import (
	"fmt"
	"math"
)

// Handle is the host's identifier for a world object. Zero is never a live object.
type Handle int32

// Valid reports whether the handle refers to anything at all.
func (h Handle) Valid() bool {
	return h != 0
}

// Vector3 is a world-space position or direction
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"` // elevation
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns v * f.
func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// DistanceTo returns the straight-line distance between two points.
func (v Vector3) DistanceTo(o Vector3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vector3) String() string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f]", v.X, v.Y, v.Z)
}

// DrivingStyle is the host's driving style bitmask.
type DrivingStyle uint32

const (
	// DrivingStyleNormal is the host's stock traffic style: stops for vehicles,
	// peds and lights, swerves around obstacles.
	DrivingStyleNormal DrivingStyle = 786603
	// DrivingStyleHighway is the style scripted drivers are spawned with.
	DrivingStyleHighway DrivingStyle = 786603
)

// MPHToMetersPerSecond converts a speed in miles per hour to the host's native unit.
func MPHToMetersPerSecond(mph float64) float64 {
	return mph * 0.44704
}
