// Package catalog holds the fixed set of highway spawn locations.
package catalog

import (
	"github.com/morespeeders/extension/pkg/world"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Candidate is a possible spawn location: a point on a highway lane and the
// heading of traffic in that lane.
type Candidate struct {
	Position world.Vector3
	Heading  float64
}

// Catalog is an immutable list of spawn candidates.
type Catalog struct {
	candidates []Candidate
}

// New copies candidates into a catalog.
func New(candidates []Candidate) *Catalog {
	c := make([]Candidate, len(candidates))
	copy(c, candidates)
	return &Catalog{candidates: c}
}

// Default returns the built-in highway catalog.
func Default() *Catalog {
	return New(highwaySpawns)
}

// Len returns the number of candidates.
func (c *Catalog) Len() int {
	return len(c.candidates)
}

// At returns candidate i.
func (c *Catalog) At(i int) Candidate {
	return c.candidates[i]
}

// Bounds returns the XY envelope covering every candidate. Candidates with
// non-finite coordinates are left out.
func (c *Catalog) Bounds() geom.Envelope {
	var env geom.Envelope
	for _, cand := range c.candidates {
		next, err := env.ExtendToIncludeXY(geom.XY{X: cand.Position.X, Y: cand.Position.Y})
		if err != nil {
			continue
		}
		env = next
	}
	return env
}

// BoundsWKT returns Bounds as WKT, for status output.
func (c *Catalog) BoundsWKT() string {
	env := c.Bounds()
	if env.IsEmpty() {
		return "POLYGON EMPTY"
	}
	return env.AsGeometry().AsText()
}

var highwaySpawns = []Candidate{
	// city ring
	{world.Vector3{X: 699.51, Y: -186.70, Z: 46.50}, 338.18},
	{world.Vector3{X: 1300.75, Y: 573.51, Z: 79.92}, 322.24},
	{world.Vector3{X: 1732.05, Y: 1569.41, Z: 84.16}, 347.38},
	{world.Vector3{X: 1098.81, Y: -1780.63, Z: 28.81}, 206.80},
	{world.Vector3{X: 865.21, Y: -670.09, Z: 42.74}, 58.99},
	{world.Vector3{X: -59.44, Y: -484.27, Z: 31.70}, 94.77},
	{world.Vector3{X: -310.73, Y: -538.73, Z: 24.86}, 279.10},
	{world.Vector3{X: -407.70, Y: -1506.49, Z: 37.01}, 353.14},
	{world.Vector3{X: -1613.20, Y: -756.05, Z: 11.15}, 248.35},

	// east interstate
	{world.Vector3{X: 1815.76, Y: 2193.65, Z: 53.60}, 170.97},
	{world.Vector3{X: 2088.07, Y: 1382.91, Z: 75.11}, 213.62},
	{world.Vector3{X: 2375.49, Y: -270.02, Z: 84.48}, 150.01},
	{world.Vector3{X: 1529.60, Y: -1025.42, Z: 57.31}, 303.48},
	{world.Vector3{X: 2477.27, Y: -136.99, Z: 89.21}, 335.19},
	{world.Vector3{X: 2124.81, Y: 1381.37, Z: 75.00}, 39.03},

	// desert
	{world.Vector3{X: 2471.31, Y: 2929.05, Z: 40.33}, 310.99},
	{world.Vector3{X: 1995.04, Y: 2598.59, Z: 54.06}, 141.76},
	{world.Vector3{X: -2627.62, Y: 2922.35, Z: 16.40}, 175.27},
	{world.Vector3{X: 2940.40, Y: 4010.55, Z: 51.10}, 10.96},
	{world.Vector3{X: 2892.37, Y: 4027.71, Z: 50.89}, 199.45},
	{world.Vector3{X: 2591.48, Y: 520.36, Z: 44.49}, 181.99},

	// west coast
	{world.Vector3{X: -2980.97, Y: 100.57, Z: 13.82}, 237.33},
	{world.Vector3{X: -2275.62, Y: 4245.20, Z: 43.32}, 149.57},
	{world.Vector3{X: -3140.68, Y: 908.63, Z: 14.18}, 5.60},

	// north
	{world.Vector3{X: 1929.91, Y: 6284.47, Z: 42.34}, 206.60},
	{world.Vector3{X: 2404.25, Y: 5800.16, Z: 45.65}, 33.84},
	{world.Vector3{X: 484.21, Y: 6576.69, Z: 26.70}, 88.32},
	{world.Vector3{X: -569.96, Y: 5666.72, Z: 38.06}, 334.48},
}
