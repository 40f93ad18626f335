// Package grid implements the tile coordinate system: the mapping between
// ground coordinates, zoom-level resolutions, and tile indices.
//
// The math follows mapcache_grid_get_tile_extent / mapcache_grid_compute_limits
// (Thomas Bonfort, MapServer project), the same lineage the reference
// MVT server in this domain builds on.
package grid

import "math"

// Origin is the corner of the grid extent that tile (0,0) is anchored to.
type Origin int

const (
	TopLeft Origin = iota
	BottomLeft
)

// Unit is the ground unit the grid's extent and resolutions are expressed in.
type Unit int

const (
	Meters Unit = iota
	Degrees
	Feet
)

// metersPerDegree converts degrees-per-pixel resolutions to meters-per-pixel,
// using the WGS84 equatorial circumference divided by 360.
const metersPerDegree = 6378137.0 * 2 * math.Pi / 360.0

const metersPerFoot = 0.3048

// Extent is a ground-space bounding box.
type Extent struct {
	Minx, Miny, Maxx, Maxy float64
}

// ExtentInt is a tile-index bounding box: Min is inclusive and Max is
// exclusive (one past the last tile index), as Grid.TileLimits returns it.
type ExtentInt struct {
	Minx, Miny, Maxx, Maxy uint32
}

// Grid is an immutable tile coordinate system.
type Grid struct {
	Width, Height uint16
	Extent        Extent
	SRID          int
	Units         Unit
	// Resolutions is ordered largest-to-smallest; index is the zoom level.
	Resolutions []float64
	Origin      Origin
}

// WebMercator returns the standard Google-Maps-compatible spherical
// Mercator grid (EPSG:3857), 256x256 tiles, 23 zoom levels.
func WebMercator() *Grid {
	return &Grid{
		Width:  256,
		Height: 256,
		Extent: Extent{
			Minx: -20037508.342789248,
			Miny: -20037508.342789248,
			Maxx: 20037508.342789248,
			Maxy: 20037508.342789248,
		},
		SRID:  3857,
		Units: Meters,
		Resolutions: []float64{
			156543.0339280410, 78271.51696402048, 39135.75848201023,
			19567.87924100512, 9783.939620502561, 4891.969810251280,
			2445.984905125640, 1222.992452562820, 611.4962262814100,
			305.7481131407048, 152.8740565703525, 76.43702828517624,
			38.21851414258813, 19.10925707129406, 9.554628535647032,
			4.777314267823516, 2.388657133911758, 1.194328566955879,
			0.5971642834779395, 0.2985821417389700, 0.1492910708694850,
			0.0746455354347424, 0.0373227677173712,
		},
		Origin: BottomLeft,
	}
}

// WGS84 returns the plate-carrée lat/lon grid (EPSG:4326), 18 zoom levels.
func WGS84() *Grid {
	return &Grid{
		Width:  256,
		Height: 256,
		Extent: Extent{Minx: -180, Miny: -90, Maxx: 180, Maxy: 90},
		SRID:   4326,
		Units:  Degrees,
		Resolutions: []float64{
			0.703125000000000, 0.351562500000000, 0.175781250000000,
			8.78906250000000e-2, 4.39453125000000e-2, 2.19726562500000e-2,
			1.09863281250000e-2, 5.49316406250000e-3, 2.74658203125000e-3,
			1.37329101562500e-3, 6.86645507812500e-4, 3.43322753906250e-4,
			1.71661376953125e-4, 8.58306884765625e-5, 4.29153442382812e-5,
			2.14576721191406e-5, 1.07288360595703e-5, 5.36441802978516e-6,
		},
		Origin: BottomLeft,
	}
}

// NLevels returns the number of zoom levels in the resolution ladder.
func (g *Grid) NLevels() uint8 { return uint8(len(g.Resolutions)) }

// MaxZoom returns the index of the finest zoom level.
func (g *Grid) MaxZoom() uint8 { return g.NLevels() - 1 }

// PixelWidth returns the ground distance covered by one pixel at zoom z,
// always in meters regardless of the grid's native unit.
func (g *Grid) PixelWidth(z uint8) float64 {
	res := g.Resolutions[z]
	switch g.Units {
	case Degrees:
		return res * metersPerDegree
	case Feet:
		return res * metersPerFoot
	default:
		return res
	}
}

// ScaleDenominator is the OGC SLD-standard cartographic scale for zoom z,
// computed against the 0.28mm reference pixel size.
func (g *Grid) ScaleDenominator(z uint8) float64 {
	const pixelScreenWidth = 0.00028
	return g.PixelWidth(z) / pixelScreenWidth
}

// TileExtent returns the ground extent of tile (x, y) at zoom z in TMS
// (origin-dependent) addressing.
func (g *Grid) TileExtent(xtile, ytile uint32, z uint8) Extent {
	res := g.Resolutions[z]
	sx, sy := float64(g.Width), float64(g.Height)
	switch g.Origin {
	case TopLeft:
		return Extent{
			Minx: g.Extent.Minx + res*float64(xtile)*sx,
			Miny: g.Extent.Maxy - res*float64(ytile+1)*sy,
			Maxx: g.Extent.Minx + res*float64(xtile+1)*sx,
			Maxy: g.Extent.Maxy - res*float64(ytile)*sy,
		}
	default: // BottomLeft
		return Extent{
			Minx: g.Extent.Minx + res*float64(xtile)*sx,
			Miny: g.Extent.Miny + res*float64(ytile)*sy,
			Maxx: g.Extent.Minx + res*float64(xtile+1)*sx,
			Maxy: g.Extent.Miny + res*float64(ytile+1)*sy,
		}
	}
}

// saturatingSub returns a-b clamped at 0 for unsigned subtraction that would
// otherwise wrap around.
func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// YTileFromXYZ reindexes a y tile index from XYZ (Google/Bing, origin
// top-left) addressing into this grid's TMS addressing.
func (g *Grid) YTileFromXYZ(ytile uint32, z uint8) uint32 {
	res := g.Resolutions[z]
	unitheight := float64(g.Height) * res
	maxy := uint32(math.Ceil((g.Extent.Maxy - g.Extent.Miny - 0.01*unitheight) / unitheight))
	return saturatingSub(saturatingSub(maxy, ytile), 1)
}

// TileExtentXYZ returns the ground extent of tile (x, y) at zoom z using
// XYZ addressing (y=0 at the top).
func (g *Grid) TileExtentXYZ(xtile, ytile uint32, z uint8) Extent {
	y := g.YTileFromXYZ(ytile, z)
	return g.TileExtent(xtile, y, z)
}

// LevelLimit returns (max_x_index, max_y_index) for zoom z: the tile-index
// count along each axis needed to cover the grid's full extent.
func (g *Grid) LevelLimit(z uint8) (uint32, uint32) {
	res := g.Resolutions[z]
	unitheight := float64(g.Height) * res
	unitwidth := float64(g.Width) * res
	maxy := uint32(math.Ceil((g.Extent.Maxy - g.Extent.Miny - 0.01*unitheight) / unitheight))
	maxx := uint32(math.Ceil((g.Extent.Maxx - g.Extent.Minx - 0.01*unitwidth) / unitwidth))
	return maxx, maxy
}

// epsilon guards the floor/ceil fencepost computations in TileLimits against
// floating-point error at exact tile boundaries.
const epsilon = 0.0000001

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TileLimits computes, for every zoom level, the tile-index bounds covering
// extent, widened by tolerance tiles on every side and clamped to the
// grid's valid index range. Each level's Max bounds are exclusive.
func (g *Grid) TileLimits(extent Extent, tolerance int) []ExtentInt {
	nlevels := int(g.NLevels())
	out := make([]ExtentInt, nlevels)
	for i := 0; i < nlevels; i++ {
		res := g.Resolutions[i]
		unitheight := float64(g.Height) * res
		unitwidth := float64(g.Width) * res
		levelMaxX, levelMaxY := g.LevelLimit(uint8(i))

		var minx, maxx, miny, maxy int64
		switch g.Origin {
		case TopLeft:
			minx = int64(math.Floor((extent.Minx-g.Extent.Minx)/unitwidth+epsilon)) - int64(tolerance)
			maxx = int64(math.Ceil((extent.Maxx-g.Extent.Minx)/unitwidth-epsilon)) + int64(tolerance)
			miny = int64(math.Floor((g.Extent.Maxy-extent.Maxy)/unitheight+epsilon)) - int64(tolerance)
			maxy = int64(math.Ceil((g.Extent.Maxy-extent.Miny)/unitheight-epsilon)) + int64(tolerance)
		default:
			minx = int64(math.Floor((extent.Minx-g.Extent.Minx)/unitwidth+epsilon)) - int64(tolerance)
			maxx = int64(math.Ceil((extent.Maxx-g.Extent.Minx)/unitwidth-epsilon)) + int64(tolerance)
			miny = int64(math.Floor((extent.Miny-g.Extent.Miny)/unitheight+epsilon)) - int64(tolerance)
			maxy = int64(math.Ceil((extent.Maxy-g.Extent.Miny)/unitheight-epsilon)) + int64(tolerance)
		}

		minx = clampInt(minx, 0, int64(levelMaxX))
		maxx = clampInt(maxx, 0, int64(levelMaxX))
		miny = clampInt(miny, 0, int64(levelMaxY))
		maxy = clampInt(maxy, 0, int64(levelMaxY))

		out[i] = ExtentInt{
			Minx: uint32(minx), Maxx: uint32(maxx),
			Miny: uint32(miny), Maxy: uint32(maxy),
		}
	}
	return out
}
