package mvt

import (
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvtgeom"
)

// Command ids for the MVT command stream (Mapbox Vector Tile spec 2.1 §4.3).
const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

// EncodeCommandInteger packs a command id and repeat count into a single
// wire integer.
func EncodeCommandInteger(id uint32, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

// DecodeCommandInteger unpacks a command integer into (id, count).
func DecodeCommandInteger(v uint32) (id uint32, count uint32) {
	return v & 0x7, v >> 3
}

// EncodeParameterInteger zig-zag encodes a signed delta for the command
// stream.
func EncodeParameterInteger(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

// DecodeParameterInteger reverses EncodeParameterInteger.
func DecodeParameterInteger(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// cursor tracks the running screen position the command stream's deltas are
// relative to.
type cursor struct{ x, y int32 }

func satSub32(a, b int32) int32 {
	d := int64(a) - int64(b)
	switch {
	case d > 1<<31-1:
		return 1<<31 - 1
	case d < -(1 << 31):
		return -(1 << 31)
	default:
		return int32(d)
	}
}

func (c *cursor) deltaTo(p mvtgeom.Point) (dx, dy int32) {
	dx = satSub32(p.X, c.x)
	dy = satSub32(p.Y, c.y)
	c.x, c.y = p.X, p.Y
	return
}

// EncodePoint encodes a single point: MoveTo(1); Δx; Δy.
func EncodePoint(c *cursor, p mvtgeom.Point) []uint32 {
	dx, dy := c.deltaTo(p)
	return []uint32{
		EncodeCommandInteger(cmdMoveTo, 1),
		EncodeParameterInteger(dx),
		EncodeParameterInteger(dy),
	}
}

// EncodeMultiPoint encodes n points as MoveTo(n) followed by n delta pairs,
// deltas taken between successive points (and from the incoming cursor for
// the first).
func EncodeMultiPoint(c *cursor, points []mvtgeom.Point) []uint32 {
	if len(points) == 0 {
		return nil
	}
	out := make([]uint32, 0, 1+2*len(points))
	out = append(out, EncodeCommandInteger(cmdMoveTo, uint32(len(points))))
	for _, p := range points {
		dx, dy := c.deltaTo(p)
		out = append(out, EncodeParameterInteger(dx), EncodeParameterInteger(dy))
	}
	return out
}

// EncodeLineString encodes a line of >=2 points: MoveTo(1) to the first
// point, LineTo(n-1) to the rest. Lines shorter than 2 points are dropped
// (empty stream).
func EncodeLineString(c *cursor, line mvtgeom.LineString) []uint32 {
	if len(line) < 2 {
		return nil
	}
	out := make([]uint32, 0, 3+2*(len(line)-1))
	dx, dy := c.deltaTo(line[0])
	out = append(out, EncodeCommandInteger(cmdMoveTo, 1), EncodeParameterInteger(dx), EncodeParameterInteger(dy))
	out = append(out, EncodeCommandInteger(cmdLineTo, uint32(len(line)-1)))
	for _, p := range line[1:] {
		dx, dy := c.deltaTo(p)
		out = append(out, EncodeParameterInteger(dx), EncodeParameterInteger(dy))
	}
	return out
}

// EncodeRing encodes a closed polygon ring of >=4 points (the trailing point
// equal to the first, as delivered by the source): MoveTo(1), LineTo(n-2),
// deltas for the interior vertices, ClosePath(1). Rings shorter than 4
// points are dropped.
func EncodeRing(c *cursor, ring mvtgeom.Ring) []uint32 {
	n := len(ring)
	if n < 4 {
		return nil
	}
	out := make([]uint32, 0, 4+2*(n-2))
	dx, dy := c.deltaTo(ring[0])
	out = append(out, EncodeCommandInteger(cmdMoveTo, 1), EncodeParameterInteger(dx), EncodeParameterInteger(dy))
	out = append(out, EncodeCommandInteger(cmdLineTo, uint32(n-2)))
	for _, p := range ring[1 : n-1] {
		dx, dy := c.deltaTo(p)
		out = append(out, EncodeParameterInteger(dx), EncodeParameterInteger(dy))
	}
	out = append(out, EncodeCommandInteger(cmdClosePath, 1))
	return out
}

// EncodeMultiLineString encodes each component with cursor chaining.
func EncodeMultiLineString(c *cursor, lines []mvtgeom.LineString) []uint32 {
	var out []uint32
	for _, l := range lines {
		out = append(out, EncodeLineString(c, l)...)
	}
	return out
}

// EncodePolygon encodes a polygon (exterior ring + holes) with cursor
// chaining across all rings.
func EncodePolygon(c *cursor, poly mvtgeom.Polygon) []uint32 {
	var out []uint32
	for _, r := range poly {
		out = append(out, EncodeRing(c, r)...)
	}
	return out
}

// EncodeMultiPolygon encodes every polygon with cursor chaining across the
// whole multi-geometry.
func EncodeMultiPolygon(c *cursor, polys []mvtgeom.Polygon) []uint32 {
	var out []uint32
	for _, p := range polys {
		out = append(out, EncodePolygon(c, p)...)
	}
	return out
}

// EncodeGeometry dispatches on the shape of a projected screen Geometry and
// returns the command stream together with the MVT geometry type to record
// on the Feature. An empty or unrepresentable geometry yields (nil,
// GeomUnknown); the caller must drop such features before adding them to
// the layer (spec: "empty command stream... dropped").
func EncodeGeometry(g mvtgeom.Geometry) ([]uint32, GeometryType) {
	c := &cursor{}
	switch {
	case g.IsUnknownShape:
		return nil, GeomUnknown
	case len(g.Points) == 1:
		return EncodePoint(c, g.Points[0]), GeomPoint
	case len(g.Points) > 1:
		return EncodeMultiPoint(c, g.Points), GeomPoint
	case len(g.LineStrings) == 1:
		return EncodeLineString(c, g.LineStrings[0]), GeomLineString
	case len(g.LineStrings) > 1:
		return EncodeMultiLineString(c, g.LineStrings), GeomLineString
	case len(g.Polygons) == 1:
		return EncodePolygon(c, g.Polygons[0]), GeomPolygon
	case len(g.Polygons) > 1:
		return EncodeMultiPolygon(c, g.Polygons), GeomPolygon
	default:
		return nil, GeomUnknown
	}
}

// ProjectGeometry converts a ground-space GroundGeometry into tile-local
// screen space ready for EncodeGeometry.
func ProjectGeometry(e mvtgeom.GroundGeometry, extent grid.Extent, reverseY bool, tileSize uint32) mvtgeom.Geometry {
	switch e.Kind {
	case mvtgeom.KindPoint, mvtgeom.KindMultiPoint:
		pts := make([]mvtgeom.Point, 0, len(e.Points))
		for _, p := range e.Points {
			pts = append(pts, mvtgeom.ProjectPoint(extent, reverseY, tileSize, p.X, p.Y))
		}
		return mvtgeom.Geometry{Points: pts}
	case mvtgeom.KindLineString, mvtgeom.KindMultiLineString:
		lines := make([]mvtgeom.LineString, 0, len(e.Lines))
		for _, l := range e.Lines {
			xs, ys := splitXY(l)
			lines = append(lines, mvtgeom.ProjectLine(extent, reverseY, tileSize, xs, ys))
		}
		return mvtgeom.Geometry{LineStrings: lines}
	case mvtgeom.KindPolygon, mvtgeom.KindMultiPolygon:
		polys := make([]mvtgeom.Polygon, 0, len(e.Polygons))
		for _, rings := range e.Polygons {
			poly := make(mvtgeom.Polygon, 0, len(rings))
			for _, r := range rings {
				xs, ys := splitXY(r)
				poly = append(poly, mvtgeom.ProjectRing(extent, reverseY, tileSize, xs, ys))
			}
			polys = append(polys, poly)
		}
		return mvtgeom.Geometry{Polygons: polys}
	default:
		return mvtgeom.Geometry{IsUnknownShape: true}
	}
}

func splitXY(pts []mvtgeom.GroundPoint) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return
}
