package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func resetConfig() {
	viper.Reset()
	Configuration = Config{}
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	resetConfig()
	defer resetConfig()

	if err := InitConfig("", false); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if Configuration.Webserver.Port != 6767 {
		t.Errorf("Webserver.Port = %d, want default 6767", Configuration.Webserver.Port)
	}
	if Configuration.Webserver.CacheControlMaxAge != 300 {
		t.Errorf("Webserver.CacheControlMaxAge = %d, want default 300", Configuration.Webserver.CacheControlMaxAge)
	}
}

func TestInitConfigReadsTOMLFile(t *testing.T) {
	resetConfig()
	defer resetConfig()

	content := `
[webserver]
port = 9999

[[datasource]]
name = "default"
dbconn = "postgres://localhost/gis"

[[tileset]]
name = "osm"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InitConfig(path, false); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if Configuration.Webserver.Port != 9999 {
		t.Errorf("Webserver.Port = %d, want 9999", Configuration.Webserver.Port)
	}
	if len(Configuration.Datasources) != 1 || Configuration.Datasources[0].Dbconn != "postgres://localhost/gis" {
		t.Errorf("Datasources = %+v, want one entry with the configured dbconn", Configuration.Datasources)
	}
	if len(Configuration.Tilesets) != 1 || Configuration.Tilesets[0].Name != "osm" {
		t.Errorf("Tilesets = %+v, want one tileset named osm", Configuration.Tilesets)
	}
}

func TestInitConfigEnvOverridesFile(t *testing.T) {
	resetConfig()
	defer resetConfig()

	content := "[webserver]\nport = 9999\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("VTS_WEBSERVER_PORT", "8000")
	defer os.Unsetenv("VTS_WEBSERVER_PORT")

	if err := InitConfig(path, false); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if Configuration.Webserver.Port != 8000 {
		t.Errorf("Webserver.Port = %d, want env override 8000", Configuration.Webserver.Port)
	}
}

func TestValidateRejectsDatasourceMissingDbconnAndPath(t *testing.T) {
	resetConfig()
	defer resetConfig()

	Configuration.Datasources = []DatasourceConfig{{Name: "bad"}}
	if err := validate(); err == nil {
		t.Error("validate() error = nil, want error for a datasource with neither dbconn nor path")
	}
}

func TestValidateRejectsDatasourceWithBothDbconnAndPath(t *testing.T) {
	resetConfig()
	defer resetConfig()

	Configuration.Datasources = []DatasourceConfig{{Name: "bad", Dbconn: "x", Path: "y"}}
	if err := validate(); err == nil {
		t.Error("validate() error = nil, want error for a datasource with both dbconn and path")
	}
}

func TestValidateRejectsUnknownPredefinedGrid(t *testing.T) {
	resetConfig()
	defer resetConfig()

	Configuration.Grid.Predefined = "Martian"
	if err := validate(); err == nil {
		t.Error("validate() error = nil, want error for an unknown predefined grid name")
	}
}

func TestValidateRejectsContradictoryCacheBackends(t *testing.T) {
	resetConfig()
	defer resetConfig()

	Configuration.Cache.File = &FileCacheConfig{Base: "/tmp"}
	Configuration.Cache.S3 = &S3CacheConfig{Bucket: "b"}
	if err := validate(); err == nil {
		t.Error("validate() error = nil, want error when both cache.file and cache.s3 are set")
	}
}
