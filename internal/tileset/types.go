// Package tileset holds the configuration-derived data model a tileset
// catalog is built from: layers, their queries, and the tilesets that group
// them, plus the generated metadata documents (TileJSON, style, MBTiles)
// clients consume.
package tileset

// GeometryType is a layer's declared source geometry shape.
type GeometryType int

const (
	GeometryUnspecified GeometryType = iota
	GeometryPoint
	GeometryLineString
	GeometryPolygon
	GeometryMultiPoint
	GeometryMultiLineString
	GeometryMultiPolygon
	GeometryGeometry // heterogeneous / unknown at config time
)

func (g GeometryType) IsPolygonal() bool {
	return g == GeometryPolygon || g == GeometryMultiPolygon
}

func (g GeometryType) IsMulti() bool {
	switch g {
	case GeometryMultiPoint, GeometryMultiLineString, GeometryMultiPolygon:
		return true
	}
	return false
}

func (g GeometryType) IsLinear() bool {
	return g == GeometryLineString || g == GeometryMultiLineString
}

// String names g the way TileJSON/Mapbox style documents and the tileset
// discovery endpoint describe it (spec.md §6).
func (g GeometryType) String() string {
	return vectorLayerTypeName(g)
}

// LayerQuery overrides a Layer's simplify/tolerance/sql for a sub-range of
// zoom levels.
type LayerQuery struct {
	MinZoom   *int
	MaxZoom   *int
	Simplify  *bool
	Tolerance string
	SQL       string
}

func (q LayerQuery) coversZoom(z int) bool {
	if q.MinZoom != nil && z < *q.MinZoom {
		return false
	}
	if q.MaxZoom != nil && z > *q.MaxZoom {
		return false
	}
	return true
}

// Layer is one config-derived vector layer: its source table/query and the
// rendering parameters that drive query synthesis.
type Layer struct {
	Name           string
	DatasourceName string
	TableName      string
	GeometryField  string
	GeometryType   GeometryType
	SRID           int
	FIDField       string
	QueryLimit     int

	MinZoomVal int
	MaxZoomVal int // 0 means "grid.MaxZoom()"

	TileSize int // MVT extent, default 4096

	Simplify       bool
	Tolerance      string
	BufferSize     *int // nil = no clipping
	MakeValid      bool
	NoTransform    bool
	ShiftLongitude bool

	Queries []LayerQuery

	Style map[string]interface{}
}

func (l *Layer) MinZoom() int { return l.MinZoomVal }

// MaxZoom resolves the layer's declared maximum zoom, defaulting to the
// grid's maximum level when unset.
func (l *Layer) MaxZoom(gridMaxZoom int) int {
	if l.MaxZoomVal == 0 {
		return gridMaxZoom
	}
	return l.MaxZoomVal
}

// TileSizeOrDefault returns the layer's configured MVT extent, defaulting to
// 4096 when unset.
func (l *Layer) TileSizeOrDefault() int {
	if l.TileSize == 0 {
		return 4096
	}
	return l.TileSize
}

// QueryForZoom selects the highest-minzoom LayerQuery entry that covers z,
// falling back to the layer's own defaults when nothing matches.
func (l *Layer) QueryForZoom(z int) (simplify bool, tolerance, sql string) {
	simplify, tolerance = l.Simplify, l.Tolerance
	best := -1
	for _, q := range l.Queries {
		if !q.coversZoom(z) {
			continue
		}
		minz := 0
		if q.MinZoom != nil {
			minz = *q.MinZoom
		}
		if minz >= best {
			best = minz
			if q.Simplify != nil {
				simplify = *q.Simplify
			}
			if q.Tolerance != "" {
				tolerance = q.Tolerance
			}
			sql = q.SQL
		}
	}
	return
}

// CacheLimits restricts the zoom range a tileset's tiles are cached for.
type CacheLimits struct {
	MinZoom int
	MaxZoom int
	NoCache bool
}

// Tileset is a named group of layers sharing a zoom range, extent and cache
// policy.
type Tileset struct {
	Name        string
	MinZoomVal  *int
	MaxZoomVal  *int
	Extent      *[4]float64 // minx, miny, maxx, maxy; nil = world
	Center      *[2]float64
	StartZoom   int
	Attribution string
	Layers      []*Layer
	CacheLimits *CacheLimits
	Style       map[string]interface{}
}

// IsCachableAt reports whether tiles at zoom z should be read from and
// written to cache for this tileset.
func (t *Tileset) IsCachableAt(z int) bool {
	if t.CacheLimits == nil {
		return true
	}
	if t.CacheLimits.NoCache {
		return false
	}
	if z < t.CacheLimits.MinZoom || z > t.CacheLimits.MaxZoom {
		return false
	}
	return true
}

// Layer looks up a named layer within the tileset.
func (t *Tileset) Layer(name string) (*Layer, bool) {
	for _, l := range t.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}
