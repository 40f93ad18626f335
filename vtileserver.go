package main

/*
# Running
Usage: ./vtileserver [--config /path/to/config.toml] [--debug] [--generate]

Browser: e.g. http://localhost:6767/

# Configuration
Config file path via -c/--config, or entirely through env vars prefixed
VTS_ (e.g. VTS_WEBSERVER_PORT=8080). See internal/conf for the full schema.

# Logging
Logging to stdout.
*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pborman/getopt/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/assembler"
	"github.com/vtileserver/vtileserver/internal/cache"
	"github.com/vtileserver/vtileserver/internal/conf"
	"github.com/vtileserver/vtileserver/internal/generator"
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/ogr"
	"github.com/vtileserver/vtileserver/internal/postgis"
	"github.com/vtileserver/vtileserver/internal/service"
	"github.com/vtileserver/vtileserver/internal/tileset"
	"github.com/vtileserver/vtileserver/internal/ui"
)

var (
	flagHelp           bool
	flagVersion        bool
	flagDebugOn        bool
	flagDevModeOn      bool
	flagConfigFilename string

	flagGenerate  bool
	flagTilesets  string
	flagNodes     int
	flagNodeNo    int
	flagOverwrite bool
)

func init() {
	getopt.FlagLong(&flagHelp, "help", '?', "Show command usage")
	getopt.FlagLong(&flagConfigFilename, "config", 'c', "", "config file name")
	getopt.FlagLong(&flagDebugOn, "debug", 'd', "Set logging level to DEBUG")
	getopt.FlagLong(&flagDevModeOn, "devel", 0, "Run in development mode (disables template caching)")
	getopt.FlagLong(&flagVersion, "version", 'v', "Output the version information")

	getopt.FlagLong(&flagGenerate, "generate", 0, "Run the bulk tile generator and exit instead of serving")
	getopt.FlagLong(&flagTilesets, "tileset", 0, "", "Comma-separated tileset names to generate (default: all)")
	getopt.FlagLong(&flagNodes, "nodes", 0, 1, "Shard the generator run across this many cooperating processes")
	getopt.FlagLong(&flagNodeNo, "node-no", 0, 0, "This process's shard index in [0, nodes)")
	getopt.FlagLong(&flagOverwrite, "overwrite", 0, "Regenerate tiles that already exist in cache")
}

func main() {
	getopt.Parse()

	if flagHelp {
		getopt.Usage()
		os.Exit(1)
	}

	if flagVersion {
		fmt.Printf("%s %s\n", conf.AppConfig.Name, conf.AppConfig.Version)
		os.Exit(1)
	}

	log.Infof("----  %s - Version %s ----------\n", conf.AppConfig.Name, conf.AppConfig.Version)

	if err := conf.InitConfig(flagConfigFilename, flagDebugOn); err != nil {
		log.Fatalf("config: %v", err)
	}

	if flagDevModeOn {
		ui.HTMLDynamicLoad = true
		log.Info("Running in development mode")
	}
	conf.DumpConfig()

	g, err := buildGrid(conf.Configuration.Grid)
	if err != nil {
		log.Fatalf("grid: %v", err)
	}

	catalog, err := tileset.BuildCatalog(conf.Configuration.Tilesets)
	if err != nil {
		log.Fatalf("tileset catalog: %v", err)
	}

	datasources, defaultDatasource, err := buildDatasources(conf.Configuration.Datasources)
	if err != nil {
		log.Fatalf("datasources: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := prepareQueries(ctx, catalog, datasources, defaultDatasource, g); err != nil {
		log.Fatalf("prepare queries: %v", err)
	}

	featureSources := make(map[string]assembler.FeatureSource, len(datasources))
	for name, ds := range datasources {
		featureSources[name] = ds
	}
	asm := assembler.New(g, featureSources, defaultDatasource)

	tileCache, err := buildCache(ctx, conf.Configuration.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	if flagGenerate {
		runGenerate(ctx, catalog, g, asm, tileCache)
		return
	}

	svc := &service.Service{
		Catalog:     catalog,
		Grid:        g,
		Assembler:   asm,
		Datasources: datasources,
	}
	svc.SetCache(tileCache)
	service.Initialize(svc)

	if err := service.Serve(ctx); err != nil {
		log.Fatalf("service: %v", err)
	}
}

// buildGrid translates the grid config section into a runtime grid.Grid,
// either one of the predefined grids or a fully user-described one.
func buildGrid(cfg conf.GridConfig) (*grid.Grid, error) {
	if cfg.User != nil {
		u := cfg.User
		return &grid.Grid{
			Width:       u.Width,
			Height:      u.Height,
			Extent:      grid.Extent{Minx: u.Extent[0], Miny: u.Extent[1], Maxx: u.Extent[2], Maxy: u.Extent[3]},
			SRID:        u.SRID,
			Units:       gridUnitFromString(u.Units),
			Resolutions: u.Resolutions,
			Origin:      gridOriginFromString(u.Origin),
		}, nil
	}

	switch cfg.Predefined {
	case "", "WebMercator":
		return grid.WebMercator(), nil
	case "WGS84":
		return grid.WGS84(), nil
	default:
		return nil, fmt.Errorf("unknown predefined grid %q", cfg.Predefined)
	}
}

func gridUnitFromString(s string) grid.Unit {
	switch strings.ToLower(s) {
	case "degrees":
		return grid.Degrees
	case "feet":
		return grid.Feet
	default:
		return grid.Meters
	}
}

func gridOriginFromString(s string) grid.Origin {
	if strings.EqualFold(s, "bottom-left") {
		return grid.BottomLeft
	}
	return grid.TopLeft
}

// buildDatasources opens one Datasource per [[datasource]] entry and reports
// which one is the default (spec §6: exactly one marked default, or the
// sole entry when there is only one). dbconn= entries open a PostGIS
// connection pool; path= entries load a CSV file through the OGR-contract
// in-memory adapter (internal/ogr), the pure-Go stand-in for a file-backed
// OGR/GDAL source.
func buildDatasources(cfgs []conf.DatasourceConfig) (map[string]assembler.Datasource, string, error) {
	datasources := make(map[string]assembler.Datasource, len(cfgs))
	defaultName := ""
	for _, dc := range cfgs {
		if dc.Path != "" {
			f, err := os.Open(dc.Path)
			if err != nil {
				return nil, "", fmt.Errorf("datasource %q: open %s: %w", dc.Name, dc.Path, err)
			}
			source, err := ogr.NewTableSource(f)
			f.Close()
			if err != nil {
				return nil, "", fmt.Errorf("datasource %q: %w", dc.Name, err)
			}
			datasources[dc.Name] = ogr.NewDatasource(ogr.Config{Name: dc.Name, Source: source})
		} else {
			datasources[dc.Name] = postgis.NewDatasource(postgis.Config{
				Name:              dc.Name,
				DBConn:            dc.Dbconn,
				PoolSize:          dc.Pool,
				ConnectionTimeout: time.Duration(dc.ConnectionTimeout) * time.Second,
			})
		}
		if dc.Default || len(cfgs) == 1 {
			defaultName = dc.Name
		}
	}
	if defaultName == "" {
		return nil, "", fmt.Errorf("no default datasource: mark one [[datasource]] with default = true")
	}
	return datasources, defaultName, nil
}

// prepareQueries connects every datasource actually referenced by a layer
// and synthesizes its prepared queries, once, before serving begins.
func prepareQueries(ctx context.Context, catalog *tileset.Catalog, datasources map[string]assembler.Datasource, defaultDatasource string, g *grid.Grid) error {
	for _, ts := range catalog.All() {
		for _, layer := range ts.Layers {
			dsName := layer.DatasourceName
			if dsName == "" {
				dsName = defaultDatasource
			}
			ds, ok := datasources[dsName]
			if !ok {
				return fmt.Errorf("tileset %q layer %q: unknown datasource %q", ts.Name, layer.Name, dsName)
			}
			if err := ds.Connected(ctx); err != nil {
				return fmt.Errorf("tileset %q layer %q: %w", ts.Name, layer.Name, err)
			}
			if err := ds.PrepareQueries(ctx, ts.Name, layer, g.SRID, int(g.MaxZoom())); err != nil {
				return fmt.Errorf("tileset %q layer %q: %w", ts.Name, layer.Name, err)
			}
		}
	}
	return nil
}

// buildCache assembles the configured cache backend, wrapped in the
// in-memory LRU front layer unless caching is disabled entirely.
func buildCache(ctx context.Context, cfg conf.CacheConfig) (*cache.LRUFrontCache, error) {
	var backend cache.Cache = cache.Nocache{}

	switch {
	case cfg.File != nil:
		backend = cache.NewFilecache(cfg.File.Base, cfg.File.BaseURL)
	case cfg.S3 != nil:
		s3cfg := cache.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKey:       cfg.S3.AccessKey,
			SecretKey:       cfg.S3.SecretKey,
			BaseURLOverride: cfg.S3.BaseURL,
			KeyPrefix:       cfg.S3.KeyPrefix,
		}
		if cfg.S3.GzipHeaderEnabled != nil {
			s3cfg.GzipHeaderEnabled = *cfg.S3.GzipHeaderEnabled
		} else {
			s3cfg.GzipHeaderEnabled = true
		}
		s3c, err := cache.NewS3Cache(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		backend = s3c
	}

	if !cfg.Enabled {
		return cache.NewDisabledFrontCache(backend), nil
	}

	maxItems := cfg.FrontMaxItems
	if maxItems <= 0 {
		maxItems = 1024
	}
	return cache.NewLRUFrontCache(backend, maxItems, int(cfg.FrontMaxMemoryMB))
}

func runGenerate(ctx context.Context, catalog *tileset.Catalog, g *grid.Grid, asm *assembler.Assembler, tileCache cache.Cache) {
	gen := &generator.Generator{Catalog: catalog, Grid: g, Assembler: asm, Cache: tileCache}

	var names []string
	if flagTilesets != "" {
		names = strings.Split(flagTilesets, ",")
	}
	cfg := generator.Config{
		Tilesets:  names,
		Nodes:     flagNodes,
		NodeNo:    flagNodeNo,
		Overwrite: flagOverwrite,
		Progress:  true,
	}

	if err := gen.Run(ctx, cfg); err != nil {
		log.Fatalf("generator: %v", err)
	}
	log.Info("generator: run complete")
}
