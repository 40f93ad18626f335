// Package mvtgeom holds tile-local integer geometry types and the
// projection from ground-space source geometry into them.
package mvtgeom

import (
	"math"

	"github.com/vtileserver/vtileserver/internal/grid"
)

// Point is a tile-local pixel coordinate pair.
type Point struct{ X, Y int32 }

// LineString is an ordered, deduplicated run of pixel points.
type LineString []Point

// Ring is a polygon ring; by convention the last point closes the ring
// (equals the first) as produced by the source. Command-stream encoding
// drops the closing point and emits ClosePath instead.
type Ring []Point

// Polygon is an exterior ring followed by zero or more interior (hole) rings.
type Polygon []Ring

// Geometry is the tagged union of screen-space geometry a feature can carry
// after projection. Exactly one of the slices is populated.
type Geometry struct {
	Points         []Point
	LineStrings    []LineString
	Polygons       []Polygon
	IsUnknownShape bool // GeometryCollection or other non-MVT-representable shape
}

// saturateToInt32 clamps a float64 pixel coordinate into the int32 range,
// mapping NaN to 0 rather than panicking — malformed source geometry must
// degrade, not crash the server.
func saturateToInt32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// project maps one ground-space (x, y) pair into tile-local pixel space.
func project(e grid.Extent, reverseY bool, tileSize uint32, x, y float64) Point {
	dx := e.Maxx - e.Minx
	dy := e.Maxy - e.Miny
	px := (x - e.Minx) * float64(tileSize) / dx
	py := (y - e.Miny) * float64(tileSize) / dy
	if reverseY {
		py = float64(tileSize) - py
	}
	return Point{X: saturateToInt32(px), Y: saturateToInt32(py)}
}

// ProjectPoint projects a single ground point.
func ProjectPoint(e grid.Extent, reverseY bool, tileSize uint32, x, y float64) Point {
	return project(e, reverseY, tileSize, x, y)
}

// ProjectLine projects a sequence of ground points into a deduplicated
// tile-local LineString (consecutive identical pixels collapsed).
func ProjectLine(e grid.Extent, reverseY bool, tileSize uint32, xs, ys []float64) LineString {
	out := make(LineString, 0, len(xs))
	for i := range xs {
		p := project(e, reverseY, tileSize, xs[i], ys[i])
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ProjectRing projects a polygon ring the same way a line is projected;
// ring closure bookkeeping lives in the MVT encoder, not here.
func ProjectRing(e grid.Extent, reverseY bool, tileSize uint32, xs, ys []float64) Ring {
	return Ring(ProjectLine(e, reverseY, tileSize, xs, ys))
}
