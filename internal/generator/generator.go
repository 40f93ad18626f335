// Package generator implements the bulk tile generator: a one-shot,
// bounded-concurrency walk over a tileset's tile grid that seeds the cache
// ahead of serving traffic.
package generator

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/assembler"
	"github.com/vtileserver/vtileserver/internal/cache"
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// Config selects the tilesets, zoom range, extent, and shard this run
// covers (spec §4.H).
type Config struct {
	// Tilesets restricts the run to the named tilesets; empty means "all".
	Tilesets []string
	MinZoom  *int
	MaxZoom  *int
	// Extent overrides the tileset's/grid's default extent; ExtentSRID
	// names the SRID it's expressed in (0 means "grid SRID").
	Extent     *grid.Extent
	ExtentSRID int
	// Nodes/NodeNo shard the run across cooperating processes: a cell is
	// generated only when tile_index mod Nodes == NodeNo.
	Nodes, NodeNo int
	Progress      bool
	Overwrite     bool
}

func (c Config) nodes() int {
	if c.Nodes <= 0 {
		return 1
	}
	return c.Nodes
}

func (c Config) includes(name string) bool {
	if len(c.Tilesets) == 0 {
		return true
	}
	for _, n := range c.Tilesets {
		if n == name {
			return true
		}
	}
	return false
}

// maxConcurrency bounds in-flight assembler tasks to stay under common
// per-process file-descriptor and database-connection limits.
func maxConcurrency() int64 {
	n := 2 * runtime.NumCPU()
	if n > 64 {
		n = 64
	}
	if n < 1 {
		n = 1
	}
	return int64(n)
}

// Generator runs bulk tile generation against a catalog, writing results
// through cache.
type Generator struct {
	Catalog   *tileset.Catalog
	Grid      *grid.Grid
	Assembler *assembler.Assembler
	Cache     cache.Cache
}

// Run executes cfg against g.Catalog, returning the first hard error
// encountered. A single failed cell is logged and skipped; it never aborts
// the run (spec §5 cancellation & timeouts).
func (g *Generator) Run(ctx context.Context, cfg Config) error {
	for _, name := range g.Catalog.Names() {
		if !cfg.includes(name) {
			continue
		}
		ts, _ := g.Catalog.Get(name)
		if err := g.seedMetadata(ctx, ts); err != nil {
			return fmt.Errorf("generator: seed metadata for %q: %w", name, err)
		}
		if err := g.runTileset(ctx, ts, cfg); err != nil {
			return fmt.Errorf("generator: run tileset %q: %w", name, err)
		}
	}
	return nil
}

// seedMetadata writes the tileset's TileJSON, style, and MBTiles metadata
// documents to cache ahead of serving (spec §4.H step 1).
func (g *Generator) seedMetadata(ctx context.Context, ts *tileset.Tileset) error {
	baseURL := g.Cache.BaseURL()
	gridMin, gridMax := 0, int(g.Grid.MaxZoom())

	tj, err := tileset.GenerateTileJSON(ts, gridMin, gridMax, baseURL)
	if err != nil {
		return fmt.Errorf("tilejson: %w", err)
	}
	if err := g.Cache.Write(ctx, ts.Name+".json", tj); err != nil {
		return err
	}

	style, err := tileset.GenerateStyle(ts, baseURL+"/"+ts.Name+".json")
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}
	if err := g.Cache.Write(ctx, ts.Name+".style.json", style); err != nil {
		return err
	}

	meta, err := tileset.GenerateMBTilesMetadata(ts, gridMin, gridMax)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return g.Cache.Write(ctx, ts.Name+"/metadata.json", meta)
}

func (g *Generator) runTileset(ctx context.Context, ts *tileset.Tileset, cfg Config) error {
	extent := g.resolveExtent(ts, cfg)
	limits := g.Grid.TileLimits(extent, 0)

	minZoom, maxZoom := 0, int(g.Grid.MaxZoom())
	if cfg.MinZoom != nil {
		minZoom = *cfg.MinZoom
	}
	if cfg.MaxZoom != nil {
		maxZoom = *cfg.MaxZoom
	}

	sem := semaphore.NewWeighted(maxConcurrency())
	eg, egCtx := errgroup.WithContext(ctx)

	var tileIndex int64
	nodes := int64(cfg.nodes())

	for z := minZoom; z <= maxZoom && z < len(limits); z++ {
		bounds := limits[z]
		levelCount := 0
		for x := bounds.Minx; x < bounds.Maxx; x++ {
			for y := bounds.Miny; y < bounds.Maxy; y++ {
				idx := tileIndex
				tileIndex++
				if idx%nodes != int64(cfg.NodeNo) {
					continue
				}

				path := g.cachePath(ts.Name, z, x, y)

				if !cfg.Overwrite {
					exists, err := g.Cache.Exists(ctx, path)
					if err != nil {
						log.WithError(err).WithField("path", path).Warn("generator: cache.Exists failed, generating anyway")
					} else if exists {
						continue
					}
				}

				if err := sem.Acquire(egCtx, 1); err != nil {
					break
				}
				levelCount++
				eg.Go(func() error {
					defer sem.Release(1)
					g.generateCell(egCtx, ts, path, x, y, z)
					return nil
				})
			}
		}
		if cfg.Progress {
			log.WithFields(log.Fields{"tileset": ts.Name, "z": z, "scheduled": levelCount}).Info("generator: level scheduled")
		}
	}

	return eg.Wait()
}

// generateCell runs the assembler for one cell and, on a non-empty result,
// gzips and writes it to cache. Failures are logged and the cell is
// skipped — a bad cell never aborts the run.
func (g *Generator) generateCell(ctx context.Context, ts *tileset.Tileset, path string, x, y uint32, z int) {
	tile, err := g.Assembler.Assemble(ctx, ts, x, y, z)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("generator: assemble failed")
		return
	}
	if len(tile.Layers) == 0 {
		return
	}

	raw := tile.Marshal()
	gzipped, err := mvt.GzipEncode(raw)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("generator: gzip failed")
		return
	}
	if err := g.Cache.Write(ctx, path, gzipped); err != nil {
		log.WithError(err).WithField("path", path).Error("generator: cache write failed")
	}
}

// cachePath computes the tile's cache key, using XYZ-scheme y for SRID 3857
// and TMS y otherwise (spec §4.H step 2.e). The XYZ<->TMS flip is a single
// involutive formula (grid.Grid.YTileFromXYZ), so the same call serves both
// directions.
func (g *Generator) cachePath(tilesetName string, z int, x, y uint32) string {
	outY := y
	if g.Grid.SRID == 3857 {
		outY = g.Grid.YTileFromXYZ(y, uint8(z))
	}
	return cache.TilePath(tilesetName, z, int(x), int(outY))
}

// resolveExtent picks the extent to enumerate: cfg's override, else the
// tileset's configured extent, else the grid's full extent. A WGS84 extent
// override is reprojected into the grid's SRS via the closed-form spherical
// Mercator formula when the grid SRID is 3857.
func (g *Generator) resolveExtent(ts *tileset.Tileset, cfg Config) grid.Extent {
	if cfg.Extent != nil {
		if cfg.ExtentSRID == 4326 && g.Grid.SRID == 3857 {
			return wgs84ToWebMercator(*cfg.Extent)
		}
		return *cfg.Extent
	}
	if ts.Extent != nil {
		e := grid.Extent{Minx: ts.Extent[0], Miny: ts.Extent[1], Maxx: ts.Extent[2], Maxy: ts.Extent[3]}
		return e
	}
	return g.Grid.Extent
}

// earthRadius is the WGS84 spherical Mercator reference radius (the same
// value EPSG:3857's defining formula uses).
const earthRadius = 6378137.0

// wgs84ToWebMercator applies the closed-form spherical Mercator projection,
// avoiding a datasource round trip for the common WGS84 -> 3857 case.
func wgs84ToWebMercator(e grid.Extent) grid.Extent {
	project := func(lon, lat float64) (float64, float64) {
		x := lon * math.Pi / 180 * earthRadius
		y := math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * earthRadius
		return x, y
	}
	minx, miny := project(e.Minx, e.Miny)
	maxx, maxy := project(e.Maxx, e.Maxy)
	return grid.Extent{Minx: minx, Miny: miny, Maxx: maxx, Maxy: maxy}
}
