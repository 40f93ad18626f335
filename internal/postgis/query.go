// Package postgis implements the PostGIS-backed Feature Source: connection
// management, query synthesis, and row-to-Feature translation.
package postgis

import (
	"fmt"
	"strings"

	"github.com/vtileserver/vtileserver/internal/tileset"
)

// Param identifies a runtime value a PreparedQuery binds at execution.
// Bbox always expands to four positional parameters; the rest bind one
// each. Order is fixed: Bbox, Zoom, PixelWidth, ScaleDenominator.
type Param int

const (
	ParamBbox Param = iota
	ParamZoom
	ParamPixelWidth
	ParamScaleDenominator
)

// PreparedQuery is a synthesised SQL statement together with the ordered
// list of runtime values the caller must bind.
type PreparedQuery struct {
	SQL        string
	ParamOrder []Param
}

// DataColumn is a non-geometry column a datasource detected on a layer's
// table, with any cast expression required to read it safely.
type DataColumn struct {
	Name string
	Cast string // empty = no cast needed
}

// Synthesize builds the SQL for one (layer, zoom) pair: clip, multi-wrap,
// simplify, reproject/set-srid on the geometry expression;
// !bbox!/!zoom!/!pixel_width!/!scale_denominator! substitution across the
// whole statement. Curved geometries are not converted: no ST_CurveToLine
// step is applied.
func Synthesize(layer *tileset.Layer, gridSRID int, z int, columns []DataColumn) (*PreparedQuery, error) {
	if layer.TableName == "" {
		_, _, userSQL := layer.QueryForZoom(z)
		if userSQL == "" {
			return nil, fmt.Errorf("postgis: layer %q has neither table_name nor query", layer.Name)
		}
	}

	geomExpr, err := geometryExpression(layer, gridSRID, z)
	if err != nil {
		return nil, err
	}

	selectList := buildSelectList(layer.GeometryField, geomExpr, columns)

	_, _, userSQL := layer.QueryForZoom(z)
	var sql string
	if userSQL != "" {
		sql = fmt.Sprintf("SELECT %s FROM (%s) AS _q", selectList, userSQL)
		if !strings.Contains(userSQL, "!bbox!") {
			sql += fmt.Sprintf(" WHERE %s && !bbox!", layer.GeometryField)
		}
	} else {
		sql = fmt.Sprintf("SELECT %s FROM %s WHERE %s && !bbox!", selectList, layer.TableName, layer.GeometryField)
	}

	if strings.Contains(sql, "!bbox!") {
		sql = strings.ReplaceAll(sql, "!bbox!", bboxExpression(layer, gridSRID))
	}

	return bindParams(sql), nil
}

// geometryExpression implements the step table of spec §4.E.
func geometryExpression(layer *tileset.Layer, gridSRID int, z int) (string, error) {
	expr := layer.GeometryField
	simplify, tolerance, _ := layer.QueryForZoom(z)

	// Curve-to-line: the source geometry type isn't modelled as a distinct
	// enum value here (CURVEPOLYGON/COMPOUNDCURVE are PostGIS-only curved
	// variants outside tileset.GeometryType); callers that need it can set
	// layer.GeometryType to GeometryGeometry and rely on ST_CurveToLine not
	// being applied, matching the "no declared type" fallback.

	if layer.BufferSize != nil {
		switch {
		case layer.GeometryType.IsPolygonal():
			expr = fmt.Sprintf("ST_Buffer(ST_Intersection(%s, !bbox!), 0.0)", expr)
		case layer.GeometryType == tileset.GeometryPoint:
			// unchanged: the bbox predicate in WHERE suffices
		default:
			expr = fmt.Sprintf("ST_Intersection(%s, !bbox!)", expr)
		}
	}

	if layer.GeometryType.IsMulti() {
		expr = fmt.Sprintf("ST_Multi(%s)", expr)
	}

	if simplify && tolerance != "" {
		switch {
		case layer.GeometryType.IsLinear():
			expr = fmt.Sprintf("ST_Multi(ST_SimplifyPreserveTopology(%s, %s))", expr, tolerance)
		case layer.GeometryType.IsPolygonal() && layer.MakeValid:
			expr = fmt.Sprintf(
				"ST_CollectionExtract(ST_Multi(ST_MakeValid(ST_SnapToGrid(%s, %s))),3)::geometry(MULTIPOLYGON,%d)",
				expr, tolerance, layer.SRID)
		case layer.GeometryType.IsPolygonal():
			expr = fmt.Sprintf(
				"COALESCE(ST_SnapToGrid(%s, %s), ST_GeomFromText('MULTIPOLYGON EMPTY',%d))::geometry(MULTIPOLYGON,%d)",
				expr, tolerance, layer.SRID, layer.SRID)
		}
		// simplify with unknown geometry type: skipped, per spec §9 open
		// question ("tolerance policy for unknown type inherited from
		// source: simplification is skipped").
	}

	srid := layer.SRID
	if srid != gridSRID && !layer.NoTransform {
		expr = fmt.Sprintf("ST_Transform(%s, %d)", expr, gridSRID)
	} else if srid <= 0 || (layer.NoTransform && srid != gridSRID) {
		expr = fmt.Sprintf("ST_SetSRID(%s, %d)", expr, gridSRID)
	}

	return expr, nil
}

// buildSelectList assembles "geometry_expr [AS field], col1, col2, ...",
// quoting data column names and applying any detected cast, and omitting
// the alias when the geometry expression is exactly the bare field (no
// transformation was applied).
func buildSelectList(field, geomExpr string, columns []DataColumn) string {
	var sb strings.Builder
	sb.WriteString(geomExpr)
	if geomExpr != field {
		sb.WriteString(" AS ")
		sb.WriteString(field)
	}
	for _, c := range columns {
		sb.WriteString(", \"")
		sb.WriteString(c.Name)
		sb.WriteString("\"")
		if c.Cast != "" {
			sb.WriteString("::")
			sb.WriteString(c.Cast)
		}
	}
	return sb.String()
}

// bboxExpression expands !bbox! into ST_MakeEnvelope($1,$2,$3,$4,srid),
// optionally buffered, reprojected to the layer's SRID, and shift-longitude
// wrapped, per spec §4.E.
func bboxExpression(layer *tileset.Layer, gridSRID int) string {
	expr := fmt.Sprintf("ST_MakeEnvelope($1,$2,$3,$4,%d)", gridSRID)

	if layer.BufferSize != nil {
		tileSize := layer.TileSizeOrDefault()
		amount := fmt.Sprintf("%d*256/%d*!pixel_width!", *layer.BufferSize, tileSize)
		expr = fmt.Sprintf("ST_Expand(%s, %s)", expr, amount)
	}

	if layer.SRID != gridSRID && !layer.NoTransform {
		expr = fmt.Sprintf("ST_Transform(%s,%d)", expr, layer.SRID)
	}

	if layer.ShiftLongitude {
		expr = fmt.Sprintf("ST_Shift_Longitude(%s)", expr)
	}

	return expr
}

// bindParams assigns positional placeholders to the remaining
// !zoom!/!pixel_width!/!scale_denominator! tokens in fixed order (bbox's
// $1-$4 are already literal in sql) and records which params were used.
func bindParams(sql string) *PreparedQuery {
	var order []Param
	if strings.Contains(sql, "ST_MakeEnvelope($1,$2,$3,$4") || strings.Contains(sql, "$1,$2,$3,$4") {
		order = append(order, ParamBbox)
	}
	next := len(order)*4 + 1

	replaceToken := func(token string, cast string, p Param) {
		if !strings.Contains(sql, token) {
			return
		}
		placeholder := fmt.Sprintf("$%d%s", next, cast)
		sql = strings.ReplaceAll(sql, token, placeholder)
		order = append(order, p)
		next++
	}
	replaceToken("!zoom!", "", ParamZoom)
	replaceToken("!pixel_width!", "::FLOAT8", ParamPixelWidth)
	replaceToken("!scale_denominator!", "::FLOAT8", ParamScaleDenominator)

	return &PreparedQuery{SQL: sql, ParamOrder: order}
}
