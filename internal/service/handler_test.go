package service

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
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/vtileserver/vtileserver/internal/assembler"
	"github.com/vtileserver/vtileserver/internal/cache"
	"github.com/vtileserver/vtileserver/internal/conf"
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/postgis"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

func init() {
	conf.Configuration.Server.AssetsPath = "../../assets"
	conf.Configuration.Metadata.Title = "Test Tileserver"
	conf.Configuration.Metadata.Description = "Test Description"
	conf.Configuration.Cache.Enabled = false
	conf.Configuration.Cache.DisableApi = true
}

func testTileset() *tileset.Tileset {
	minZoom, maxZoom := 0, 14
	return &tileset.Tileset{
		Name:       "buildings",
		MinZoomVal: &minZoom,
		MaxZoomVal: &maxZoom,
		Layers: []*tileset.Layer{
			{Name: "buildings", TableName: "buildings", GeometryField: "geom", GeometryType: tileset.GeometryPolygon},
		},
	}
}

func setupTestService(t *testing.T) {
	t.Helper()
	cat, err := tileset.NewCatalog([]*tileset.Tileset{testTileset()})
	if err != nil {
		t.Fatal(err)
	}

	serviceInstance = &Service{
		Catalog: cat,
		Grid:    grid.WebMercator(),
		Datasources: map[string]assembler.Datasource{
			"default": postgis.NewDatasource(postgis.Config{Name: "default", DBConn: "postgres://127.0.0.1:1/nonexistent"}),
		},
	}
	serviceInstance.SetCache(cache.NewDisabledFrontCache(cache.Nocache{}))
}

func TestHandleHealthReportsDisconnectedDatasource(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	appHandler(handleHealth).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse health response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("got status field %q, want %q", resp.Status, "error")
	}
	if resp.Datasources["default"] != "disconnected" {
		t.Errorf("got datasource status %q, want %q", resp.Datasources["default"], "disconnected")
	}
}

func TestHandleIndexListsTilesets(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/index.json", nil)
	rr := httptest.NewRecorder()
	appHandler(handleIndex).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp IndexResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse index response: %v", err)
	}
	if len(resp.Tilesets) != 1 || resp.Tilesets[0].Name != "buildings" {
		t.Fatalf("unexpected tilesets: %+v", resp.Tilesets)
	}
	if len(resp.Tilesets[0].Layers) != 1 || resp.Tilesets[0].Layers[0].GeometryType != "polygon" {
		t.Fatalf("unexpected layers: %+v", resp.Tilesets[0].Layers)
	}
}

func TestHandleRoot(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	appHandler(handleRoot).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != ContentTypeHTML {
		t.Errorf("got Content-Type %q, want %q", ct, ContentTypeHTML)
	}
}

func TestHandleTileUnknownTileset(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/roads/10/512/384.pbf", nil)
	req = mux.SetURLVars(req, map[string]string{"tileset": "roads", "z": "10", "x": "512", "y": "384"})
	rr := httptest.NewRecorder()
	appHandler(handleTile).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleTileOutOfRangeZoomReturnsNoContent(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/buildings/20/512/384.pbf", nil)
	req = mux.SetURLVars(req, map[string]string{"tileset": "buildings", "z": "20", "x": "512", "y": "384"})
	rr := httptest.NewRecorder()
	appHandler(handleTile).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestHandleTileInvalidCoordinates(t *testing.T) {
	setupTestService(t)

	req := httptest.NewRequest("GET", "/buildings/10/notanumber/384.pbf", nil)
	req = mux.SetURLVars(req, map[string]string{"tileset": "buildings", "z": "10", "x": "notanumber", "y": "384"})
	rr := httptest.NewRecorder()
	appHandler(handleTile).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRouterKnownRoutesMatch(t *testing.T) {
	setupTestService(t)
	router := initRouter("")

	tests := []struct {
		method   string
		path     string
		notFound bool
	}{
		{"GET", "/", false},
		{"GET", "/index.html", false},
		{"GET", "/health", false},
		{"GET", "/index.json", false},
		{"GET", "/buildings.json", false},
		{"GET", "/buildings.style.json", false},
		{"GET", "/buildings/metadata.json", false},
		// known path, wrong method: gorilla/mux answers 405, not 404
		{"POST", "/", false},
		{"GET", "/cache/stats", true}, // disabled via Cache.DisableApi in this test binary
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			gotNotFound := rr.Code == http.StatusNotFound
			if gotNotFound != tt.notFound {
				t.Errorf("%s %s: got status %d (notFound=%v), want notFound=%v", tt.method, tt.path, rr.Code, gotNotFound, tt.notFound)
			}
		})
	}
}

func TestGetBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		scheme   string
		expected string
	}{
		{"simple http", "localhost:9000", "http", "http://localhost:9000"},
		{"https", "example.com", "https", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Host = tt.host
			if tt.scheme == "https" {
				req.TLS = &tls.ConnectionState{}
			}

			if got := getBaseURL(req); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatTileURL(t *testing.T) {
	tests := []struct {
		baseURL  string
		tileset  string
		expected string
	}{
		{"http://localhost:9000", "buildings", "http://localhost:9000/buildings/{z}/{x}/{y}.pbf"},
		{"https://example.com", "roads", "https://example.com/roads/{z}/{x}/{y}.pbf"},
	}

	for _, tt := range tests {
		t.Run(tt.tileset, func(t *testing.T) {
			if got := formatTileURL(tt.baseURL, tt.tileset); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
