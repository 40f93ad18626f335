package ogr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vtileserver/vtileserver/internal/mvtgeom"
)

// decodeWKT parses a Well-Known Text geometry into a GroundGeometry. WKT,
// not WKB, is the geometry encoding GDAL's generic drivers (CSV, VRT) most
// commonly expose for sources with no native binary format, which is what
// this package's row sources are expected to carry (internal/postgis's hex
// EWKB decoder is the PostGIS-specific analogue, grounded on the same
// sql.Rows-scan shape).
//
// Supports POINT, LINESTRING, POLYGON and their MULTI* forms; Z/M suffixes
// and GEOMETRYCOLLECTION are not handled (no source in this module's tests
// emits them).
func decodeWKT(s string) (mvtgeom.GroundGeometry, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	switch {
	case strings.HasPrefix(upper, "MULTIPOLYGON"):
		body, err := body(s, "MULTIPOLYGON")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		polys, err := parsePolygonList(body)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiPolygon, Polygons: polys}, nil

	case strings.HasPrefix(upper, "POLYGON"):
		body, err := body(s, "POLYGON")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		poly, err := parsePolygon(body)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindPolygon, Polygons: [][][]mvtgeom.GroundPoint{poly}}, nil

	case strings.HasPrefix(upper, "MULTILINESTRING"):
		body, err := body(s, "MULTILINESTRING")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		lines, err := parseRingList(body)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiLineString, Lines: lines}, nil

	case strings.HasPrefix(upper, "LINESTRING"):
		body, err := body(s, "LINESTRING")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		line, err := parsePoints(body)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindLineString, Lines: [][]mvtgeom.GroundPoint{line}}, nil

	case strings.HasPrefix(upper, "MULTIPOINT"):
		body, err := body(s, "MULTIPOINT")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		pts, err := parsePoints(strings.NewReplacer("(", "", ")", "").Replace(body))
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiPoint, Points: pts}, nil

	case strings.HasPrefix(upper, "POINT"):
		body, err := body(s, "POINT")
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		pts, err := parsePoints(body)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindPoint, Points: pts}, nil

	default:
		return mvtgeom.GroundGeometry{}, fmt.Errorf("ogr: unsupported WKT geometry: %s", s)
	}
}

// body strips a WKT tag and its outermost parentheses, e.g.
// body("POLYGON((0 0,1 1))", "POLYGON") == "(0 0,1 1)".
func body(s, tag string) (string, error) {
	rest := strings.TrimSpace(s[len(tag):])
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", fmt.Errorf("ogr: malformed %s: %s", tag, s)
	}
	return rest[1 : len(rest)-1], nil
}

// parsePoints parses a flat "x y, x y, ..." coordinate list.
func parsePoints(s string) ([]mvtgeom.GroundPoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	pts := make([]mvtgeom.GroundPoint, 0, len(parts))
	for _, p := range parts {
		fields := strings.Fields(strings.TrimSpace(p))
		if len(fields) < 2 {
			return nil, fmt.Errorf("ogr: malformed coordinate %q", p)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("ogr: malformed x coordinate %q: %w", fields[0], err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("ogr: malformed y coordinate %q: %w", fields[1], err)
		}
		pts = append(pts, mvtgeom.GroundPoint{X: x, Y: y})
	}
	return pts, nil
}

// parseRingList splits "(x y,...),(x y,...)" into its component point
// lists, used for both MULTILINESTRING components and polygon rings.
func parseRingList(s string) ([][]mvtgeom.GroundPoint, error) {
	groups, err := splitGroups(s)
	if err != nil {
		return nil, err
	}
	rings := make([][]mvtgeom.GroundPoint, 0, len(groups))
	for _, g := range groups {
		pts, err := parsePoints(g)
		if err != nil {
			return nil, err
		}
		rings = append(rings, pts)
	}
	return rings, nil
}

// parsePolygon parses "(ext ring),(hole),(hole)" into exterior-then-holes.
func parsePolygon(s string) ([][]mvtgeom.GroundPoint, error) {
	return parseRingList(s)
}

// parsePolygonList parses a MULTIPOLYGON body, "((poly)),((poly))", into
// one polygon (exterior + holes) per top-level group.
func parsePolygonList(s string) ([][][]mvtgeom.GroundPoint, error) {
	groups, err := splitGroups(s)
	if err != nil {
		return nil, err
	}
	polys := make([][][]mvtgeom.GroundPoint, 0, len(groups))
	for _, g := range groups {
		rings, err := parsePolygon(g)
		if err != nil {
			return nil, err
		}
		polys = append(polys, rings)
	}
	return polys, nil
}

// splitGroups splits a comma-separated list of parenthesized groups at the
// top level only, respecting nesting, e.g. "(a),(b,c)" -> ["a", "b,c"].
func splitGroups(s string) ([]string, error) {
	var groups []string
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("ogr: unbalanced parentheses: %s", s)
			}
			if depth == 0 {
				groups = append(groups, s[start:i])
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("ogr: unbalanced parentheses: %s", s)
	}
	return groups, nil
}
