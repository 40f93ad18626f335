package assembler

import (
	"context"
	"testing"

	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/mvtgeom"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// fakeSource hands back a fixed feature set regardless of the query, and
// records whether it was invoked.
type fakeSource struct {
	features []mvt.Feature
	calls    int
}

func (f *fakeSource) RetrieveFeatures(
	_ context.Context,
	_ string,
	_ *tileset.Layer,
	_ grid.Extent,
	_ int,
	_, _ float64,
	sink func(mvt.Feature),
) (int, error) {
	f.calls++
	for _, feat := range f.features {
		sink(feat)
	}
	return len(f.features), nil
}

func pointFeature(x, y float64) mvt.Feature {
	return mvt.SimpleFeature{
		ID: 1, HasID: true,
		Attrs: []mvt.Attribute{{Key: "name", Value: mvt.StringValue("a")}},
		Geom: mvtgeom.GroundGeometry{
			Kind:   mvtgeom.KindPoint,
			Points: []mvtgeom.GroundPoint{{X: x, Y: y}},
		},
	}
}

func testWebMercatorTileset(minZoom, maxZoom int) *tileset.Tileset {
	return &tileset.Tileset{
		Name: "osm",
		Layers: []*tileset.Layer{
			{Name: "places", MinZoomVal: minZoom, MaxZoomVal: maxZoom, TileSize: 4096},
		},
	}
}

func TestAssembleIncludesNonEmptyLayer(t *testing.T) {
	g := grid.WebMercator()
	src := &fakeSource{features: []mvt.Feature{pointFeature(0, 0)}}
	a := New(g, map[string]FeatureSource{"": src}, "")

	tile, err := a.Assemble(context.Background(), testWebMercatorTileset(0, 14), 0, 0, 2)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(tile.Layers) != 1 {
		t.Fatalf("len(tile.Layers) = %d, want 1", len(tile.Layers))
	}
	if src.calls != 1 {
		t.Errorf("datasource.calls = %d, want 1", src.calls)
	}
}

func TestAssembleOmitsEmptyLayer(t *testing.T) {
	g := grid.WebMercator()
	src := &fakeSource{} // no features
	a := New(g, map[string]FeatureSource{"": src}, "")

	tile, err := a.Assemble(context.Background(), testWebMercatorTileset(0, 14), 0, 0, 2)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(tile.Layers) != 0 {
		t.Errorf("len(tile.Layers) = %d, want 0 for a layer with no features", len(tile.Layers))
	}
}

func TestAssembleSkipsLayerOutsideZoomRange(t *testing.T) {
	g := grid.WebMercator()
	src := &fakeSource{features: []mvt.Feature{pointFeature(0, 0)}}
	a := New(g, map[string]FeatureSource{"": src}, "")

	tile, err := a.Assemble(context.Background(), testWebMercatorTileset(5, 14), 0, 0, 2)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(tile.Layers) != 0 {
		t.Errorf("len(tile.Layers) = %d, want 0 when z is below the layer's minzoom", len(tile.Layers))
	}
	if src.calls != 0 {
		t.Errorf("datasource.calls = %d, want 0 when the layer is skipped by zoom range", src.calls)
	}
}

func TestAssembleErrorsOnMissingDatasource(t *testing.T) {
	g := grid.WebMercator()
	a := New(g, map[string]FeatureSource{"other": &fakeSource{}}, "")

	_, err := a.Assemble(context.Background(), testWebMercatorTileset(0, 14), 0, 0, 2)
	if err == nil {
		t.Fatal("Assemble() error = nil, want error for an unresolvable datasource")
	}
}
