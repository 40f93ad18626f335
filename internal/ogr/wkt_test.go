package ogr

import (
	"testing"

	"github.com/vtileserver/vtileserver/internal/mvtgeom"
)

func TestDecodeWKTPoint(t *testing.T) {
	g, err := decodeWKT("POINT(12.5 -7.25)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != mvtgeom.KindPoint || len(g.Points) != 1 {
		t.Fatalf("got %+v", g)
	}
	if g.Points[0].X != 12.5 || g.Points[0].Y != -7.25 {
		t.Fatalf("got point %+v", g.Points[0])
	}
}

func TestDecodeWKTLineString(t *testing.T) {
	g, err := decodeWKT("LINESTRING(0 0, 1 1, 2 0)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != mvtgeom.KindLineString || len(g.Lines) != 1 || len(g.Lines[0]) != 3 {
		t.Fatalf("got %+v", g)
	}
	if g.Lines[0][1] != (mvtgeom.GroundPoint{X: 1, Y: 1}) {
		t.Fatalf("got midpoint %+v", g.Lines[0][1])
	}
}

func TestDecodeWKTPolygonWithHole(t *testing.T) {
	g, err := decodeWKT("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0), (2 2, 4 2, 4 4, 2 4, 2 2))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != mvtgeom.KindPolygon || len(g.Polygons) != 1 {
		t.Fatalf("got %+v", g)
	}
	rings := g.Polygons[0]
	if len(rings) != 2 {
		t.Fatalf("got %d rings, want exterior + 1 hole", len(rings))
	}
	if len(rings[0]) != 5 || len(rings[1]) != 5 {
		t.Fatalf("got ring lengths %d, %d", len(rings[0]), len(rings[1]))
	}
}

func TestDecodeWKTMultiPolygon(t *testing.T) {
	g, err := decodeWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((2 2, 3 2, 3 3, 2 3, 2 2)))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != mvtgeom.KindMultiPolygon || len(g.Polygons) != 2 {
		t.Fatalf("got %+v", g)
	}
}

func TestDecodeWKTMultiLineString(t *testing.T) {
	g, err := decodeWKT("MULTILINESTRING((0 0, 1 1), (2 2, 3 3))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != mvtgeom.KindMultiLineString || len(g.Lines) != 2 {
		t.Fatalf("got %+v", g)
	}
}

func TestDecodeWKTRejectsUnsupportedTag(t *testing.T) {
	if _, err := decodeWKT("GEOMETRYCOLLECTION(POINT(0 0))"); err == nil {
		t.Fatalf("expected an error for an unsupported geometry tag")
	}
}

func TestDecodeWKTRejectsMalformedParens(t *testing.T) {
	if _, err := decodeWKT("POLYGON(0 0, 1 1"); err == nil {
		t.Fatalf("expected an error for unbalanced parentheses")
	}
}
