// Package assembler builds a single MVT Tile message from a tileset's
// configured layers by querying a datasource layer-by-layer and encoding
// each layer's features into the tile, per tile request.
package assembler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// FeatureSource is the subset of a datasource the assembler needs: retrieve
// every feature of layer visible in extent at zoom z, invoking sink once per
// feature. Implementations report the feature count they produced.
type FeatureSource interface {
	RetrieveFeatures(
		ctx context.Context,
		tilesetName string,
		layer *tileset.Layer,
		extent grid.Extent,
		z int,
		pixelWidth, scaleDenominator float64,
		sink func(mvt.Feature),
	) (int, error)
}

// Datasource is the full contract a [[datasource]] entry must satisfy:
// FeatureSource plus the lifecycle calls the main entrypoint drives before
// serving begins. Both internal/postgis.Datasource and internal/ogr.Datasource
// implement it, so vtileserver.go's wiring stays identical regardless of
// which backend a given entry names.
type Datasource interface {
	FeatureSource
	Connected(ctx context.Context) error
	PrepareQueries(ctx context.Context, tilesetName string, layer *tileset.Layer, gridSRID, gridMaxZoom int) error
}

// Assembler builds Tile messages on demand from a grid and a set of named
// datasources, one per tileset layer's configured DatasourceName.
type Assembler struct {
	Grid              *grid.Grid
	Datasources       map[string]FeatureSource
	DefaultDatasource string
}

// New builds an Assembler over g, dispatching each layer's queries to the
// datasource named by its DatasourceName field (or defaultDatasource when
// unset).
func New(g *grid.Grid, datasources map[string]FeatureSource, defaultDatasource string) *Assembler {
	return &Assembler{Grid: g, Datasources: datasources, DefaultDatasource: defaultDatasource}
}

func (a *Assembler) datasourceFor(layer *tileset.Layer) (FeatureSource, error) {
	name := layer.DatasourceName
	if name == "" {
		name = a.DefaultDatasource
	}
	ds, ok := a.Datasources[name]
	if !ok {
		return nil, fmt.Errorf("assembler: no datasource named %q for layer %q", name, layer.Name)
	}
	return ds, nil
}

// Assemble builds the Tile for (ts, x, y, z) in TMS (origin-dependent)
// addressing — XYZ-to-TMS inversion happens at the cache boundary, not here.
// Layers outside [minzoom, maxzoom] for z are skipped; a layer that yields
// zero features is omitted from the returned Tile entirely.
func (a *Assembler) Assemble(ctx context.Context, ts *tileset.Tileset, x, y uint32, z int) (*mvt.Tile, error) {
	extent := a.Grid.TileExtent(x, y, uint8(z))
	reverseY := a.Grid.SRID == 3857

	tile := &mvt.Tile{}
	pixelWidth := a.Grid.PixelWidth(uint8(z))
	scaleDenom := a.Grid.ScaleDenominator(uint8(z))

	for _, layer := range ts.Layers {
		if z < layer.MinZoom() || z > layer.MaxZoom(int(a.Grid.MaxZoom())) {
			continue
		}

		ds, err := a.datasourceFor(layer)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		var features []mvt.Feature
		count, err := ds.RetrieveFeatures(ctx, ts.Name, layer, extent, z, pixelWidth, scaleDenom,
			func(f mvt.Feature) { features = append(features, f) })
		if err != nil {
			return nil, fmt.Errorf("assembler: retrieve features for %s/%s: %w", ts.Name, layer.Name, err)
		}

		log.WithFields(log.Fields{
			"tileset": ts.Name, "layer": layer.Name, "z": z,
			"features": count, "elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("assembler: layer retrieved")

		mvtLayer := mvt.BuildLayer(layer.Name, extent, uint32(layer.TileSizeOrDefault()), reverseY, features)
		if len(mvtLayer.Features) == 0 {
			continue
		}
		tile.AddLayer(mvtLayer)
	}

	return tile, nil
}
