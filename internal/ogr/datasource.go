// Package ogr implements the Datasource contract against a generic,
// database/sql-shaped row reader instead of a concrete driver. A real
// GDAL/OGR binding is a CGO dependency out of reach of this module (spec's
// Non-goals), but the contract it would satisfy is not: anything that can
// answer QueryContext the way *sql.DB does can stand in for one, including
// the in-memory/CSV-backed adapter this package ships for tests.
//
// The row-scanning and prepared-query-registry shape here mirrors
// internal/postgis.Datasource; the difference is what "prepared" means.
// PostGIS pushes bbox/zoom filtering into generated SQL via ST_* functions.
// OGR's SQL dialect has no equivalent spatial operators — GDAL instead
// applies a spatial filter at the OGR layer API, outside SQL entirely — so
// this Datasource resolves a layer's query text once per zoom and does the
// extent test itself, in Go, against each row's decoded geometry.
package ogr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/mvtgeom"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// Rows is the subset of *sql.Rows a Datasource needs. A real database/sql
// driver's *sql.Rows already implements this; RowSource.QueryContext can
// return it unmodified.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// RowSource is the generic reader a Datasource queries against, the same
// shape *sql.DB.QueryContext exposes. Swapping in a future GDAL/OGR CGO
// binding, or a pure-Go GeoPackage/SQLite driver, means implementing this
// one method — RetrieveFeatures never changes.
type RowSource interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
}

// Config configures one OGR-contract datasource entry.
type Config struct {
	Name   string
	Source RowSource
}

// Datasource is the OGR Feature Source: a row reader plus the per-(tileset,
// layer, zoom) query text resolved ahead of serving.
type Datasource struct {
	Name   string
	source RowSource

	queries map[string]string
}

// NewDatasource wraps source as a Datasource named name. source may be nil
// until a caller assigns one later (mirrors postgis.NewDatasource opening a
// pool lazily); Connected reports the gap instead of panicking on use.
func NewDatasource(cfg Config) *Datasource {
	return &Datasource{Name: cfg.Name, source: cfg.Source, queries: map[string]string{}}
}

// Connected reports whether the datasource has a row source to query. There
// is no connection pool to open here the way postgis.Datasource.Connected
// opens one: RowSource implementations that need a handshake perform it
// themselves and return an error from QueryContext, which PrepareQueries
// and RetrieveFeatures already surface.
func (d *Datasource) Connected(ctx context.Context) error {
	if d.source == nil {
		return fmt.Errorf("ogr: %s: no row source configured", d.Name)
	}
	return nil
}

// PrepareQueries resolves, for every zoom level in the layer's declared
// range, the query text RetrieveFeatures will hand to the row source: the
// layer's own SQL override when one covers that zoom (tileset.Layer.QueryForZoom),
// otherwise a bare "select everything from this table" query.
func (d *Datasource) PrepareQueries(ctx context.Context, tilesetName string, layer *tileset.Layer, gridSRID, gridMaxZoom int) error {
	for z := layer.MinZoom(); z <= layer.MaxZoom(gridMaxZoom); z++ {
		_, _, userSQL := layer.QueryForZoom(z)
		query := userSQL
		if query == "" {
			if layer.TableName == "" {
				return fmt.Errorf("ogr: layer %q has neither table_name nor query", layer.Name)
			}
			query = fmt.Sprintf("SELECT * FROM %s", layer.TableName)
		}
		d.queries[registryKey(tilesetName, layer.Name, z)] = query
	}
	return nil
}

func registryKey(tilesetName, layerName string, z int) string {
	return fmt.Sprintf("%s/%s/%d", tilesetName, layerName, z)
}

// RetrieveFeatures runs the query PrepareQueries resolved for (tilesetName,
// layer, z), decodes each row into a mvt.Feature, and invokes sink for rows
// whose geometry intersects extent. Unlike postgis.Datasource, the extent
// test happens here rather than in the query itself (see package doc).
func (d *Datasource) RetrieveFeatures(
	ctx context.Context,
	tilesetName string,
	layer *tileset.Layer,
	extent grid.Extent,
	z int,
	pixelWidth, scaleDenominator float64,
	sink func(mvt.Feature),
) (int, error) {
	query, ok := d.queries[registryKey(tilesetName, layer.Name, z)]
	if !ok {
		return 0, fmt.Errorf("ogr: no prepared query for %s/%s/%d", tilesetName, layer.Name, z)
	}
	if d.source == nil {
		return 0, fmt.Errorf("ogr: %s: no row source configured", d.Name)
	}

	rows, err := d.source.QueryContext(ctx, query)
	if err != nil {
		logrus.WithError(err).WithField("query", query).Error("ogr: query failed")
		return 0, nil // layer contributes zero features; tile continues (spec §7)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("ogr: read columns: %w", err)
	}

	count := 0
	for rows.Next() {
		if layer.QueryLimit > 0 && count >= layer.QueryLimit {
			break
		}
		f, err := scanFeature(rows, cols, layer)
		if err != nil {
			logrus.WithError(err).WithField("layer", layer.Name).Warn("ogr: skipping malformed feature")
			continue
		}
		if !intersects(f.Geom, extent) {
			continue
		}
		sink(f)
		count++
	}
	return count, rows.Err()
}

func scanFeature(rows Rows, cols []string, layer *tileset.Layer) (mvt.SimpleFeature, error) {
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return mvt.SimpleFeature{}, fmt.Errorf("scan row: %w", err)
	}

	var f mvt.SimpleFeature
	for i, col := range cols {
		val := raw[i]
		if col == layer.GeometryField {
			wkt, ok := val.(string)
			if !ok {
				return mvt.SimpleFeature{}, fmt.Errorf("geometry column %q not a string", col)
			}
			geom, err := decodeWKT(wkt)
			if err != nil {
				return mvt.SimpleFeature{}, err
			}
			f.Geom = geom
			continue
		}
		if layer.FIDField != "" && col == layer.FIDField {
			if id, ok := toUint64(val); ok {
				f.ID, f.HasID = id, true
			}
			continue
		}
		f.Attrs = append(f.Attrs, mvt.Attribute{Key: col, Value: toValue(val)})
	}
	return f, nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int64:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case float64:
		return uint64(n), true
	case string:
		var u uint64
		if _, err := fmt.Sscanf(n, "%d", &u); err == nil {
			return u, true
		}
	}
	return 0, false
}

// toValue converts a scanned column into a mvt.Value. Unlike postgis's
// driver, a row source here may hand back everything as string (the CSV
// adapter does), so numeric and boolean forms are recovered by parsing
// before falling back to a plain string value.
func toValue(v interface{}) mvt.Value {
	switch n := v.(type) {
	case nil:
		return mvt.StringValue("")
	case bool:
		return mvt.BoolValue(n)
	case int64:
		return mvt.IntValue(n)
	case int32:
		return mvt.IntValue(int64(n))
	case float64:
		return mvt.DoubleValue(n)
	case float32:
		return mvt.FloatValue(n)
	case []byte:
		return stringOrNumber(string(n))
	case string:
		return stringOrNumber(n)
	default:
		return mvt.StringValue(fmt.Sprintf("%v", n))
	}
}

func stringOrNumber(s string) mvt.Value {
	var i int64
	if _, err := fmt.Sscanf(s, "%d", &i); err == nil && fmt.Sprintf("%d", i) == s {
		return mvt.IntValue(i)
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err == nil && fmt.Sprintf("%g", f) == s {
		return mvt.DoubleValue(f)
	}
	if s == "true" || s == "false" {
		return mvt.BoolValue(s == "true")
	}
	return mvt.StringValue(s)
}

// intersects reports whether geom's bounding box overlaps extent. A bbox
// test, not an exact intersection, matching the coarse pre-filter role
// postgis's SQL "&&" operator plays before finer geometry operations.
func intersects(geom mvtgeom.GroundGeometry, extent grid.Extent) bool {
	minx, miny, maxx, maxy, ok := bounds(geom)
	if !ok {
		return false
	}
	return minx <= extent.Maxx && maxx >= extent.Minx && miny <= extent.Maxy && maxy >= extent.Miny
}

func bounds(geom mvtgeom.GroundGeometry) (minx, miny, maxx, maxy float64, ok bool) {
	first := true
	expand := func(p mvtgeom.GroundPoint) {
		if first {
			minx, miny, maxx, maxy = p.X, p.Y, p.X, p.Y
			first = false
			return
		}
		if p.X < minx {
			minx = p.X
		}
		if p.X > maxx {
			maxx = p.X
		}
		if p.Y < miny {
			miny = p.Y
		}
		if p.Y > maxy {
			maxy = p.Y
		}
	}
	for _, p := range geom.Points {
		expand(p)
	}
	for _, line := range geom.Lines {
		for _, p := range line {
			expand(p)
		}
	}
	for _, poly := range geom.Polygons {
		for _, ring := range poly {
			for _, p := range ring {
				expand(p)
			}
		}
	}
	return minx, miny, maxx, maxy, !first
}
