package tileset

import (
	"testing"

	"github.com/vtileserver/vtileserver/internal/conf"
)

func TestBuildCatalogMapsTilesetAndLayerFields(t *testing.T) {
	minZoom, maxZoom, tileSize := 2, 12, 2048
	cfgs := []conf.TilesetConfig{
		{
			Name:      "roads",
			StartZoom: 4,
			MinZoom:   &minZoom,
			MaxZoom:   &maxZoom,
			Layers: []conf.LayerConfig{
				{
					Name:          "roads",
					TableName:     "public.roads",
					GeometryField: "geom",
					GeometryType:  "LineString",
					TileSize:      &tileSize,
					Queries: []conf.LayerQueryConfig{
						{SQL: "select * from roads where z = 5"},
					},
				},
			},
		},
	}

	cat, err := BuildCatalog(cfgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts, ok := cat.Get("roads")
	if !ok {
		t.Fatalf("expected tileset %q in catalog", "roads")
	}
	if ts.StartZoom != 4 {
		t.Fatalf("got StartZoom %d want 4", ts.StartZoom)
	}
	if ts.MinZoomVal == nil || *ts.MinZoomVal != 2 {
		t.Fatalf("got MinZoomVal %v want 2", ts.MinZoomVal)
	}

	layer, ok := ts.Layer("roads")
	if !ok {
		t.Fatalf("expected layer %q", "roads")
	}
	if layer.GeometryType != GeometryLineString {
		t.Fatalf("got GeometryType %v want GeometryLineString", layer.GeometryType)
	}
	if layer.TileSize != 2048 {
		t.Fatalf("got TileSize %d want 2048", layer.TileSize)
	}
	if len(layer.Queries) != 1 || layer.Queries[0].SQL != "select * from roads where z = 5" {
		t.Fatalf("unexpected queries: %+v", layer.Queries)
	}
}

func TestBuildCatalogRejectsLayerWithoutTableOrQuery(t *testing.T) {
	cfgs := []conf.TilesetConfig{
		{
			Name: "roads",
			Layers: []conf.LayerConfig{
				{Name: "roads", GeometryField: "geom"},
			},
		},
	}

	if _, err := BuildCatalog(cfgs); err == nil {
		t.Fatalf("expected error for layer without table_name or query")
	}
}

func TestBuildCatalogRejectsTilesetWithNoLayers(t *testing.T) {
	cfgs := []conf.TilesetConfig{{Name: "empty"}}

	if _, err := BuildCatalog(cfgs); err == nil {
		t.Fatalf("expected error for tileset with no layers")
	}
}

func TestGeometryTypeFromStringIsCaseInsensitive(t *testing.T) {
	cases := map[string]GeometryType{
		"point":          GeometryPoint,
		"POLYGON":        GeometryPolygon,
		"MultiPolygon":   GeometryMultiPolygon,
		"geometry":       GeometryGeometry,
		"nonsense-value": GeometryUnspecified,
	}
	for in, want := range cases {
		if got := geometryTypeFromString(in); got != want {
			t.Errorf("geometryTypeFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
