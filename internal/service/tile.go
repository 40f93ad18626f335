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
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/cache"
	"github.com/vtileserver/vtileserver/internal/conf"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// parseTileVars extracts and validates (tileset, z, x, y) from the route,
// reporting whether z falls outside the tileset's declared zoom range so
// the caller can return 204 instead of assembling (spec.md §6: "the z is
// silently clamped to the tileset's declared zoom range").
func parseTileVars(r *http.Request) (ts *tileset.Tileset, x, y uint32, z int, outOfRange bool, appErr *appError) {
	vars := mux.Vars(r)
	name := vars["tileset"]

	found, ok := serviceInstance.Catalog.Get(name)
	if !ok {
		return nil, 0, 0, 0, false, appErrorNotFound(nil, fmt.Sprintf("unknown tileset: %s", name))
	}

	z, err := strconv.Atoi(vars["z"])
	if err != nil {
		return nil, 0, 0, 0, false, appErrorBadRequest(err, fmt.Sprintf("invalid zoom level: %s", vars["z"]))
	}
	xi, err := strconv.Atoi(vars["x"])
	if err != nil {
		return nil, 0, 0, 0, false, appErrorBadRequest(err, fmt.Sprintf("invalid x coordinate: %s", vars["x"]))
	}
	yi, err := strconv.Atoi(vars["y"])
	if err != nil {
		return nil, 0, 0, 0, false, appErrorBadRequest(err, fmt.Sprintf("invalid y coordinate: %s", vars["y"]))
	}

	gridMax := int(serviceInstance.Grid.MaxZoom())
	minZoom, maxZoom := 0, gridMax
	if found.MinZoomVal != nil {
		minZoom = *found.MinZoomVal
	}
	if found.MaxZoomVal != nil {
		maxZoom = *found.MaxZoomVal
	}
	if z < minZoom || z > maxZoom {
		return found, 0, 0, z, true, nil
	}

	return found, uint32(xi), uint32(yi), z, false, nil
}

// tmsY converts a request's XYZ-scheme y to the TMS-scheme y the grid and
// assembler operate on. The flip is involutive, so the same call undoes it.
// tileCachePath does not apply it: cache keys stay in the XYZ scheme.
func tmsY(y uint32, z int) uint32 {
	if serviceInstance.Grid.SRID != 3857 {
		return y
	}
	return serviceInstance.Grid.YTileFromXYZ(y, uint8(z))
}

// tileCachePath builds the cache key for a request's (x, y, z), which are
// already in the URL's XYZ scheme and need no further conversion: the
// generator writes entries keyed the same way (generator.Generator.cachePath).
func tileCachePath(ts *tileset.Tileset, x, y uint32, z int) string {
	return cache.TilePath(ts.Name, z, int(x), int(y))
}

// handleTile serves a single MVT tile. Cache lookups/writes are handled by
// tileCacheMiddleware; this handler always assembles on a miss.
func handleTile(w http.ResponseWriter, r *http.Request) *appError {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", conf.Configuration.Cache.BrowserCacheMaxAge))

	ts, x, y, z, outOfRange, appErr := parseTileVars(r)
	if appErr != nil {
		return appErr
	}
	if outOfRange {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	log.Debugf("service: tile request tileset=%s z=%d x=%d y=%d", ts.Name, z, x, y)

	tile, err := serviceInstance.Assembler.Assemble(r.Context(), ts, x, tmsY(y, z), z)
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("error assembling tile: %v", err))
	}
	if len(tile.Layers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	w.Header().Set("Content-Type", ContentTypeMVT)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(tile.Marshal()); err != nil {
		return appErrorInternal(err, "error writing tile data")
	}
	return nil
}

// handleTileJSON serves the tileset's TileJSON 3.x document.
func handleTileJSON(w http.ResponseWriter, r *http.Request) *appError {
	name := mux.Vars(r)["tileset"]
	ts, ok := serviceInstance.Catalog.Get(name)
	if !ok {
		return appErrorNotFound(nil, fmt.Sprintf("unknown tileset: %s", name))
	}

	gridMax := int(serviceInstance.Grid.MaxZoom())
	doc, err := tileset.GenerateTileJSON(ts, 0, gridMax, getBaseURL(r))
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("error generating TileJSON: %v", err))
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	if _, werr := w.Write(doc); werr != nil {
		return appErrorInternal(werr, "error writing TileJSON")
	}
	return nil
}

// handleStyle serves the tileset's Mapbox GL style document.
func handleStyle(w http.ResponseWriter, r *http.Request) *appError {
	name := mux.Vars(r)["tileset"]
	ts, ok := serviceInstance.Catalog.Get(name)
	if !ok {
		return appErrorNotFound(nil, fmt.Sprintf("unknown tileset: %s", name))
	}

	tileJSONURL := getBaseURL(r) + "/" + ts.Name + ".json"
	doc, err := tileset.GenerateStyle(ts, tileJSONURL)
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("error generating style: %v", err))
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	if _, werr := w.Write(doc); werr != nil {
		return appErrorInternal(werr, "error writing style")
	}
	return nil
}

// handleMetadata serves the tileset's MBTiles-compatible metadata document.
func handleMetadata(w http.ResponseWriter, r *http.Request) *appError {
	name := mux.Vars(r)["tileset"]
	ts, ok := serviceInstance.Catalog.Get(name)
	if !ok {
		return appErrorNotFound(nil, fmt.Sprintf("unknown tileset: %s", name))
	}

	gridMax := int(serviceInstance.Grid.MaxZoom())
	doc, err := tileset.GenerateMBTilesMetadata(ts, 0, gridMax)
	if err != nil {
		return appErrorInternal(err, fmt.Sprintf("error generating metadata: %v", err))
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	if _, werr := w.Write(doc); werr != nil {
		return appErrorInternal(werr, "error writing metadata")
	}
	return nil
}
