// Package geo converts world positions to geometry for the journal and to
// geographic coordinates for map overlays.
//
// World positions are metres on a flat frame. For overlays the frame is read
// as EPSG:3857 (Web Mercator) and projected to EPSG:4326 lon/lat.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/morespeeders/extension/pkg/world"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point returns v as an XYZ point. Geometry is stored as WKB.
func Point(v world.Vector3) (geom.Point, error) {
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}
	return p, nil
}

// Vector is the inverse of Point. Empty points give the zero vector.
func Vector(p geom.Point) world.Vector3 {
	c, ok := p.Coordinates()
	if !ok {
		return world.Vector3{}
	}
	return world.Vector3{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}

// ParseVector parses "x,y" or "x,y,z".
func ParseVector(s string) (world.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return world.Vector3{}, ErrInvalidCoordinates
	}

	var xyz [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return world.Vector3{}, ErrInvalidCoordinates
		}
		xyz[i] = f
	}
	return world.Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

var toLonLat = wgs84.EPSG().Transform(3857, 4326)

// LonLat projects a world position to longitude and latitude in degrees.
func LonLat(v world.Vector3) (lon, lat float64) {
	lon, lat, _ = toLonLat(v.X, v.Y, 0)
	return lon, lat
}
