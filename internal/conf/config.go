package conf

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DatasourceConfig mirrors spec.md §6's [[datasource]] table. Exactly one of
// Dbconn/Path is expected per entry (Path is reserved for OGR sources;
// internal/ogr consumes it).
type DatasourceConfig struct {
	Name              string `mapstructure:"name"`
	Default           bool   `mapstructure:"default"`
	Dbconn            string `mapstructure:"dbconn"`
	Path              string `mapstructure:"path"`
	Pool              int    `mapstructure:"pool"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// GridConfig selects a predefined grid ("WebMercator"/"WGS84") or describes a
// user grid inline.
type GridConfig struct {
	Predefined string          `mapstructure:"predefined"`
	User       *UserGridConfig `mapstructure:"user"`
}

type UserGridConfig struct {
	Width       uint16    `mapstructure:"width"`
	Height      uint16    `mapstructure:"height"`
	Extent      [4]float64 `mapstructure:"extent"`
	SRID        int       `mapstructure:"srid"`
	Units       string    `mapstructure:"units"`
	Resolutions []float64 `mapstructure:"resolutions"`
	Origin      string    `mapstructure:"origin"`
}

// LayerQueryConfig mirrors a [[tileset.layer.query]] entry.
type LayerQueryConfig struct {
	MinZoom   *int   `mapstructure:"minzoom"`
	MaxZoom   *int   `mapstructure:"maxzoom"`
	Simplify  *bool  `mapstructure:"simplify"`
	Tolerance string `mapstructure:"tolerance"`
	SQL       string `mapstructure:"sql"`
}

// LayerConfig mirrors a [[tileset.layer]] entry.
type LayerConfig struct {
	Name            string             `mapstructure:"name"`
	DatasourceName  string             `mapstructure:"datasource_name"`
	TableName       string             `mapstructure:"table_name"`
	GeometryField   string             `mapstructure:"geometry_field"`
	GeometryType    string             `mapstructure:"geometry_type"`
	SRID            int                `mapstructure:"srid"`
	FIDField        string             `mapstructure:"fid_field"`
	QueryLimit      int                `mapstructure:"query_limit"`
	MinZoom         *int               `mapstructure:"minzoom"`
	MaxZoom         *int               `mapstructure:"maxzoom"`
	TileSize        *int               `mapstructure:"tile_size"`
	Simplify        *bool              `mapstructure:"simplify"`
	Tolerance       string             `mapstructure:"tolerance"`
	BufferSize      *int               `mapstructure:"buffer_size"`
	MakeValid       bool               `mapstructure:"make_valid"`
	NoTransform     bool               `mapstructure:"no_transform"`
	ShiftLongitude  bool               `mapstructure:"shift_longitude"`
	Queries         []LayerQueryConfig `mapstructure:"query"`
	Style           map[string]interface{} `mapstructure:"style"`
}

// CacheLimitsConfig mirrors tileset.cache_limits.
type CacheLimitsConfig struct {
	MinZoom *int `mapstructure:"minzoom"`
	MaxZoom *int `mapstructure:"maxzoom"`
	NoCache bool `mapstructure:"no_cache"`
}

// TilesetConfig mirrors a [[tileset]] entry.
type TilesetConfig struct {
	Name         string                 `mapstructure:"name"`
	Extent       *[4]float64            `mapstructure:"extent"`
	MinZoom      *int                   `mapstructure:"minzoom"`
	MaxZoom      *int                   `mapstructure:"maxzoom"`
	Center       *[2]float64            `mapstructure:"center"`
	StartZoom    int                    `mapstructure:"start_zoom"`
	Attribution  string                 `mapstructure:"attribution"`
	CacheLimits  *CacheLimitsConfig     `mapstructure:"cache_limits"`
	Style        map[string]interface{} `mapstructure:"style"`
	Layers       []LayerConfig          `mapstructure:"layer"`
}

// FileCacheConfig mirrors cache.file.
type FileCacheConfig struct {
	Base    string `mapstructure:"base"`
	BaseURL string `mapstructure:"baseurl"`
}

// S3CacheConfig mirrors cache.s3.
type S3CacheConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket"`
	AccessKey         string `mapstructure:"access_key"`
	SecretKey         string `mapstructure:"secret_key"`
	BaseURL           string `mapstructure:"baseurl"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	GzipHeaderEnabled *bool  `mapstructure:"gzip_header_enabled"`
}

// CacheConfig selects the cache backend. At most one of File/S3 should be
// set; neither set means Nocache.
type CacheConfig struct {
	File *FileCacheConfig `mapstructure:"file"`
	S3   *S3CacheConfig   `mapstructure:"s3"`
	// FrontMaxItems/FrontMaxMemoryMB size the optional in-process LRU
	// front cache layered ahead of File/S3 (not named by spec.md's
	// config grammar; a supplemental knob, defaulting to disabled).
	FrontMaxItems      int    `mapstructure:"front_max_items"`
	FrontMaxMemoryMB   int64  `mapstructure:"front_max_memory_mb"`
	Enabled            bool   `mapstructure:"enabled"`
	DisableApi         bool   `mapstructure:"disable_api"`
	ApiKey             string `mapstructure:"api_key"`
	BrowserCacheMaxAge int    `mapstructure:"browser_cache_max_age"`
}

// WebserverConfig mirrors the webserver section.
type WebserverConfig struct {
	Bind               string `mapstructure:"bind"`
	Port               int    `mapstructure:"port"`
	Threads            int    `mapstructure:"threads"`
	CacheControlMaxAge int    `mapstructure:"cache_control_max_age"`
	// BasePath prefixes every route (e.g. behind a reverse proxy at a
	// sub-path); empty means routes are mounted at "/".
	BasePath string `mapstructure:"base_path"`
	// Static names a directory of extra static assets. It is read from
	// config, but no route serves it.
	Static string `mapstructure:"static"`
}

// ServiceConfig mirrors service.mvt.
type ServiceConfig struct {
	Viewer bool `mapstructure:"viewer"`
}

// ServerMetadata carries the viewer page's title/description, following the
// teacher's Metadata config shape.
type ServerMetadata struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

type ServerConfig struct {
	AssetsPath string `mapstructure:"assets_path"`
}

// Config is the top-level, TOML-shaped application configuration consumed
// opaquely by the core (spec.md §6). Populated by InitConfig.
type Config struct {
	Service     ServiceConfig      `mapstructure:"service"`
	Datasources []DatasourceConfig `mapstructure:"datasource"`
	Grid        GridConfig         `mapstructure:"grid"`
	Tilesets    []TilesetConfig    `mapstructure:"tileset"`
	Cache       CacheConfig        `mapstructure:"cache"`
	Webserver   WebserverConfig    `mapstructure:"webserver"`
	Server      ServerConfig       `mapstructure:"server"`
	Metadata    ServerMetadata     `mapstructure:"metadata"`
}

// Configuration is the process-wide, read-only-after-startup configuration
// (spec.md §5's "service configuration is immutable for the lifetime of the
// process"). Populated by InitConfig.
var Configuration Config

func setDefaults() {
	viper.SetDefault("webserver.bind", "0.0.0.0")
	viper.SetDefault("webserver.port", 6767)
	viper.SetDefault("webserver.threads", 4)
	viper.SetDefault("webserver.cache_control_max_age", 300)
	viper.SetDefault("grid.predefined", "WebMercator")
	viper.SetDefault("metadata.title", AppConfig.Name)
	viper.SetDefault("cache.browser_cache_max_age", 300)
}

// InitConfig loads configuration from path (when non-empty) and from
// environment variables prefixed AppConfig.EnvPrefix, following the
// teacher's InitConfig shape: env vars always take precedence over the
// config file, which takes precedence over defaults.
func InitConfig(path string, debug bool) error {
	setDefaults()

	viper.SetEnvPrefix(AppConfig.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("conf: read config %q: %w", path, err)
		}
	}

	if err := viper.Unmarshal(&Configuration); err != nil {
		return fmt.Errorf("conf: unmarshal config: %w", err)
	}

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	return validate()
}

// validate implements spec.md §7's Configuration error taxonomy: invalid
// TOML is caught by viper.ReadInConfig above; this catches missing required
// fields, unknown grid names, and contradictory per-datasource options.
func validate() error {
	for i, ds := range Configuration.Datasources {
		if ds.Dbconn == "" && ds.Path == "" {
			return fmt.Errorf("conf: datasource[%d] %q: exactly one of dbconn/path is required", i, ds.Name)
		}
		if ds.Dbconn != "" && ds.Path != "" {
			return fmt.Errorf("conf: datasource[%d] %q: dbconn and path are mutually exclusive", i, ds.Name)
		}
	}

	if Configuration.Grid.User == nil {
		switch Configuration.Grid.Predefined {
		case "", "WebMercator", "WGS84":
		default:
			return fmt.Errorf("conf: unknown predefined grid %q", Configuration.Grid.Predefined)
		}
	}

	if Configuration.Cache.File != nil && Configuration.Cache.S3 != nil {
		return fmt.Errorf("conf: cache.file and cache.s3 are mutually exclusive")
	}

	return nil
}

// DumpConfig logs the effective, non-secret configuration at startup,
// following the teacher's startup-banner convention (internal/conf.DumpConfig
// is called right after InitConfig in duckdb-tileserver.go).
func DumpConfig() {
	log.Infof("%s %s starting", AppConfig.Name, AppConfig.Version)
	log.Infof("conf: %d datasource(s), %d tileset(s)", len(Configuration.Datasources), len(Configuration.Tilesets))
	log.Infof("conf: grid = %s", gridDescription())
	log.Infof("conf: webserver = %s:%d", Configuration.Webserver.Bind, Configuration.Webserver.Port)
	switch {
	case Configuration.Cache.S3 != nil:
		log.Infof("conf: cache = s3 (bucket=%s)", Configuration.Cache.S3.Bucket)
	case Configuration.Cache.File != nil:
		log.Infof("conf: cache = file (base=%s)", Configuration.Cache.File.Base)
	default:
		log.Infof("conf: cache = disabled")
	}
}

func gridDescription() string {
	if Configuration.Grid.User != nil {
		return fmt.Sprintf("user(srid=%d)", Configuration.Grid.User.SRID)
	}
	if Configuration.Grid.Predefined == "" {
		return "WebMercator"
	}
	return Configuration.Grid.Predefined
}
