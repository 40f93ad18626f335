package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// Config configures one PostGIS datasource entry (spec §6 [[datasource]]).
type Config struct {
	Name              string
	DBConn            string
	PoolSize          int
	ConnectionTimeout time.Duration
}

// Datasource is the PostGIS Feature Source: a connection pool plus the
// query registry it serves prepared queries from.
type Datasource struct {
	Name string
	cfg  Config
	db   *sql.DB

	registry *Registry
}

const (
	defaultPoolSize          = 8
	defaultConnectionTimeout = 30 * time.Second
)

// NewDatasource opens (but does not yet connect) a PostGIS datasource.
func NewDatasource(cfg Config) *Datasource {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}
	return &Datasource{Name: cfg.Name, cfg: cfg, registry: NewRegistry()}
}

// Connected establishes (idempotently) the datasource's connection pool,
// retrying with sslmode=require if a plain connection reports that TLS is
// mandatory (spec §4.D).
func (d *Datasource) Connected(ctx context.Context) error {
	if d.db != nil {
		return nil
	}
	db, err := openAndPing(ctx, d.cfg.DBConn)
	if err != nil {
		if needsTLSRetry(err) {
			retryConn := withSSLRequire(d.cfg.DBConn)
			logrus.WithField("datasource", d.Name).Warn("postgis: plain connection rejected, retrying with sslmode=require")
			db, err = openAndPing(ctx, retryConn)
		}
		if err != nil {
			return fmt.Errorf("postgis: connect datasource %q: %w", d.Name, err)
		}
	}
	db.SetMaxOpenConns(d.cfg.PoolSize)
	db.SetMaxIdleConns(d.cfg.PoolSize)
	d.db = db
	return nil
}

func openAndPing(ctx context.Context, dbconn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbconn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func needsTLSRetry(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SSL connection is required") ||
		strings.Contains(msg, "unable to initialize connections")
}

func withSSLRequire(dbconn string) string {
	if strings.Contains(dbconn, "sslmode=") {
		return dbconn
	}
	sep := " "
	if strings.Contains(dbconn, "://") {
		sep = "?"
		if strings.Contains(dbconn, "?") {
			sep = "&"
		}
	}
	return dbconn + sep + "sslmode=require"
}

// DetectDataColumns returns every non-geometry column of the layer's source
// (table or zero-row WHERE false probe of its query), skipping the geometry
// field.
func (d *Datasource) DetectDataColumns(ctx context.Context, layer *tileset.Layer) ([]DataColumn, error) {
	probe := layer.TableName
	if probe == "" {
		_, _, userSQL := layer.QueryForZoom(layer.MinZoom())
		probe = fmt.Sprintf("(%s) AS _probe", userSQL)
	}
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE false", probe))
	if err != nil {
		return nil, fmt.Errorf("postgis: probe columns for layer %q: %w", layer.Name, err)
	}
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("postgis: column types for layer %q: %w", layer.Name, err)
	}
	out := make([]DataColumn, 0, len(cols))
	for _, c := range cols {
		if c.Name() == layer.GeometryField {
			continue
		}
		out = append(out, DataColumn{Name: c.Name()})
	}
	return out, nil
}

// ReprojectExtent converts an extent between spatial references using
// PostGIS's own transform, for user-supplied extents that don't match the
// grid SRS.
func (d *Datasource) ReprojectExtent(ctx context.Context, e grid.Extent, srcSRID, destSRID int) (*grid.Extent, error) {
	if srcSRID == destSRID {
		return &e, nil
	}
	const q = `SELECT ST_XMin(g), ST_YMin(g), ST_XMax(g), ST_YMax(g) FROM (
		SELECT ST_Transform(ST_MakeEnvelope($1,$2,$3,$4,$5), $6) AS g
	) _`
	var out grid.Extent
	err := d.db.QueryRowContext(ctx, q, e.Minx, e.Miny, e.Maxx, e.Maxy, srcSRID, destSRID).
		Scan(&out.Minx, &out.Miny, &out.Maxx, &out.Maxy)
	if err != nil {
		return nil, fmt.Errorf("postgis: reproject extent: %w", err)
	}
	return &out, nil
}

// LayerExtent returns the layer's data bounding box in the grid's SRS, or
// nil if the table is empty.
func (d *Datasource) LayerExtent(ctx context.Context, layer *tileset.Layer, gridSRID int) (*grid.Extent, error) {
	if layer.TableName == "" {
		return nil, nil
	}
	transform := ""
	if layer.SRID != gridSRID && !layer.NoTransform {
		transform = fmt.Sprintf("ST_Transform(%s, %d)", layer.GeometryField, gridSRID)
	} else {
		transform = layer.GeometryField
	}
	q := fmt.Sprintf(
		"SELECT ST_XMin(e), ST_YMin(e), ST_XMax(e), ST_YMax(e) FROM (SELECT ST_Extent(%s) AS e FROM %s) _",
		transform, layer.TableName)
	var minx, miny, maxx, maxy sql.NullFloat64
	err := d.db.QueryRowContext(ctx, q).Scan(&minx, &miny, &maxx, &maxy)
	if err == sql.ErrNoRows || (err == nil && !minx.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgis: layer extent for %q: %w", layer.Name, err)
	}
	return &grid.Extent{Minx: minx.Float64, Miny: miny.Float64, Maxx: maxx.Float64, Maxy: maxy.Float64}, nil
}

// PrepareQueries synthesizes and registers a PreparedQuery for every zoom
// level in [layer.MinZoom(), layer.MaxZoom(gridMaxZoom)].
func (d *Datasource) PrepareQueries(ctx context.Context, tilesetName string, layer *tileset.Layer, gridSRID, gridMaxZoom int) error {
	columns, err := d.DetectDataColumns(ctx, layer)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"tileset": tilesetName, "layer": layer.Name}).
			Warn("postgis: failed to detect data columns, continuing with geometry only")
		columns = nil
	}
	for z := layer.MinZoom(); z <= layer.MaxZoom(gridMaxZoom); z++ {
		pq, err := Synthesize(layer, gridSRID, z, columns)
		if err != nil {
			return fmt.Errorf("postgis: prepare %s/%s/%d: %w", tilesetName, layer.Name, z, err)
		}
		d.registry.Put(tilesetName, layer.Name, z, pq)
	}
	return nil
}

// Registry exposes the datasource's prepared-query registry, read-only
// after PrepareQueries has populated it.
func (d *Datasource) Registry() *Registry { return d.registry }

// RetrieveFeatures executes the prepared query for (tilesetName, layer, z),
// binds the runtime parameters it declares, and invokes sink for each row.
// It returns the number of features yielded, honouring layer.QueryLimit by
// stopping iteration rather than via SQL LIMIT (spec §4.E).
func (d *Datasource) RetrieveFeatures(
	ctx context.Context,
	tilesetName string,
	layer *tileset.Layer,
	extent grid.Extent,
	z int,
	pixelWidth, scaleDenominator float64,
	sink func(mvt.Feature),
) (int, error) {
	pq, ok := d.registry.Get(tilesetName, layer.Name, z)
	if !ok {
		return 0, fmt.Errorf("postgis: no prepared query for %s/%s/%d", tilesetName, layer.Name, z)
	}

	args := buildArgs(pq.ParamOrder, extent, z, pixelWidth, scaleDenominator)
	rows, err := d.db.QueryContext(ctx, pq.SQL, args...)
	if err != nil {
		logrus.WithError(err).WithField("sql", pq.SQL).Error("postgis: query failed")
		return 0, nil // layer contributes zero features; tile continues (spec §7)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("postgis: read columns: %w", err)
	}

	count := 0
	for rows.Next() {
		if layer.QueryLimit > 0 && count >= layer.QueryLimit {
			break
		}
		f, err := scanFeature(rows, cols, layer)
		if err != nil {
			logrus.WithError(err).WithField("layer", layer.Name).Warn("postgis: skipping malformed feature")
			continue
		}
		sink(f)
		count++
	}
	return count, rows.Err()
}

func buildArgs(order []Param, extent grid.Extent, z int, pixelWidth, scaleDenominator float64) []interface{} {
	var args []interface{}
	for _, p := range order {
		switch p {
		case ParamBbox:
			args = append(args, extent.Minx, extent.Miny, extent.Maxx, extent.Maxy)
		case ParamZoom:
			args = append(args, z)
		case ParamPixelWidth:
			args = append(args, pixelWidth)
		case ParamScaleDenominator:
			args = append(args, scaleDenominator)
		}
	}
	return args
}

func scanFeature(rows *sql.Rows, cols []string, layer *tileset.Layer) (mvt.Feature, error) {
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	var f mvt.SimpleFeature
	for i, col := range cols {
		val := raw[i]
		if col == layer.GeometryField {
			hexEWKB, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("geometry column %q not a string", col)
			}
			geom, err := decodeGeometry(hexEWKB)
			if err != nil {
				return nil, err
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
	}
	return 0, false
}

func toValue(v interface{}) mvt.Value {
	switch n := v.(type) {
	case nil:
		return mvt.StringValue("")
	case string:
		return mvt.StringValue(n)
	case []byte:
		return mvt.StringValue(string(n))
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
	default:
		return mvt.StringValue(fmt.Sprintf("%v", n))
	}
}
