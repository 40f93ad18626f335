package ogr

import (
	"context"
	"strings"
	"testing"

	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

func buildingsCSV() string {
	return strings.Join([]string{
		"id,name,height,geom",
		"1,Tower,42.5,\"POINT(5 5)\"",
		"2,Shed,3,\"POINT(50 50)\"",
		"3,Barn,NOT_A_NUMBER,\"NOT WKT\"",
	}, "\n")
}

func buildingsLayer() *tileset.Layer {
	return &tileset.Layer{
		Name:          "buildings",
		TableName:     "buildings",
		GeometryField: "geom",
		GeometryType:  tileset.GeometryPoint,
		FIDField:      "id",
		MaxZoomVal:    14,
	}
}

func setup(t *testing.T) *Datasource {
	t.Helper()
	source, err := NewTableSource(strings.NewReader(buildingsCSV()))
	if err != nil {
		t.Fatal(err)
	}
	ds := NewDatasource(Config{Name: "fixtures", Source: source})
	if err := ds.PrepareQueries(context.Background(), "buildings", buildingsLayer(), 3857, 14); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestDatasourceConnectedReportsMissingSource(t *testing.T) {
	ds := NewDatasource(Config{Name: "empty"})
	if err := ds.Connected(context.Background()); err == nil {
		t.Fatalf("expected an error for a datasource with no row source")
	}
}

func TestDatasourceConnectedOKWithSource(t *testing.T) {
	ds := setup(t)
	if err := ds.Connected(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetrieveFeaturesFiltersByExtentAndSkipsMalformedRows(t *testing.T) {
	ds := setup(t)
	var got []mvt.Feature
	extent := grid.Extent{Minx: 0, Miny: 0, Maxx: 10, Maxy: 10}

	count, err := ds.RetrieveFeatures(context.Background(), "buildings", buildingsLayer(), extent, 10, 1, 1, func(f mvt.Feature) {
		got = append(got, f)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Row 2 is outside the extent, row 3 has unparsable WKT: only row 1
	// survives both the malformed-row skip and the bbox filter.
	if count != 1 || len(got) != 1 {
		t.Fatalf("got count=%d features=%d, want 1 each", count, len(got))
	}
	id, ok := got[0].FID()
	if !ok || id != 1 {
		t.Fatalf("got FID %v, ok=%v, want 1", id, ok)
	}
	var name string
	var height float64
	for _, a := range got[0].Attributes() {
		switch a.Key {
		case "name":
			name = a.Value.Str
		case "height":
			height = a.Value.Dbl
		}
	}
	if name != "Tower" {
		t.Fatalf("got name %q, want Tower", name)
	}
	if height != 42.5 {
		t.Fatalf("got height %v, want 42.5", height)
	}
}

func TestRetrieveFeaturesHonorsQueryLimit(t *testing.T) {
	ds := setup(t)
	layer := buildingsLayer()
	layer.QueryLimit = 1
	wideExtent := grid.Extent{Minx: -1000, Miny: -1000, Maxx: 1000, Maxy: 1000}

	count, err := ds.RetrieveFeatures(context.Background(), "buildings", layer, wideExtent, 10, 1, 1, func(mvt.Feature) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("got count %d, want 1 (QueryLimit should stop iteration early)", count)
	}
}

func TestRetrieveFeaturesUnpreparedZoomReturnsError(t *testing.T) {
	source, err := NewTableSource(strings.NewReader(buildingsCSV()))
	if err != nil {
		t.Fatal(err)
	}
	ds := NewDatasource(Config{Name: "fixtures", Source: source})
	_, err = ds.RetrieveFeatures(context.Background(), "buildings", buildingsLayer(), grid.Extent{}, 10, 1, 1, func(mvt.Feature) {})
	if err == nil {
		t.Fatalf("expected an error for a zoom level with no prepared query")
	}
}
