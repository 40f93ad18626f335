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
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/conf"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeMVT  = "application/x-protobuf"
	ContentTypeText = "text/plain"
)

// initRouter sets up the HTTP routes of spec.md §6's external interface.
func initRouter(basePath string) http.Handler {
	router := mux.NewRouter()

	var r *mux.Router
	if basePath != "" {
		log.Infof("Using base path: %s", basePath)
		r = router.PathPrefix(basePath).Subrouter()
	} else {
		r = router
	}

	// Root endpoint - HTML map viewer
	r.Handle("/", appHandler(handleRoot)).Methods("GET")
	r.Handle("/index.html", appHandler(handleRoot)).Methods("GET")
	r.Handle("/home.html", appHandler(handleRoot)).Methods("GET")

	// Health check endpoint
	r.Handle("/health", appHandler(handleHealth)).Methods("GET")

	// Tileset discovery endpoint
	r.Handle("/index.json", appHandler(handleIndex)).Methods("GET")

	// Font range serving
	r.Handle("/fontstacks.json", appHandler(handleFontStacks)).Methods("GET")
	r.Handle("/fonts.json", appHandler(handleFontStacks)).Methods("GET")
	r.Handle("/fonts/{stack}/{fontrange}.pbf", appHandler(handleFontRange)).Methods("GET")

	// Metadata endpoints. The style route comes first: "/{tileset}.json"
	// would otherwise match "name.style.json" as tileset "name.style".
	r.Handle("/{tileset}.style.json", appHandler(handleStyle)).Methods("GET")
	r.Handle("/{tileset}.json", appHandler(handleTileJSON)).Methods("GET")
	r.Handle("/{tileset}/metadata.json", appHandler(handleMetadata)).Methods("GET")

	// MVT tile endpoint (with cache middleware)
	r.Handle("/{tileset}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.pbf",
		serviceInstance.tileCacheMiddleware(appHandler(handleTile))).Methods("GET")

	// Cache management endpoints (conditionally registered)
	if !conf.Configuration.Cache.DisableApi {
		log.Info("Cache management endpoints enabled")
		r.Handle("/cache/stats", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheStats))).Methods("GET")
		r.Handle("/cache/clear", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheClear))).Methods("DELETE")
		r.Handle("/cache/tileset/{tileset}", appHandler(cacheAuthMiddleware(serviceInstance.handleCacheClearTileset))).Methods("DELETE")
	} else {
		log.Info("Cache management endpoints disabled")
	}

	// Log registered routes
	router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err == nil {
			log.Debugf("Registered route: %s", pathTemplate)
		}
		return nil
	})

	// CORS headers are needed on every response (spec.md §6); access
	// logging wraps the whole router. Compression is handled per-handler
	// by the tile cache middleware instead of a blanket CompressHandler,
	// since tile bytes are already gzip-encoded in cache and a second
	// generic gzip wrapper would double-encode them.
	return handlers.CombinedLoggingHandler(os.Stdout, handlers.CORS()(router))
}

// handleRoot serves the embedded map viewer.
func handleRoot(w http.ResponseWriter, r *http.Request) *appError {
	return serveMapViewer(w, r)
}

// getBaseURL constructs the base URL generated metadata documents' tile
// URL templates are rooted at.
func getBaseURL(r *http.Request) string {
	// Remove trailing slash from serveURLBase
	base := serveURLBase(r)
	if len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base
}

// formatTileURL formats the tile URL template embedded in TileJSON/style
// documents for tilesetName.
func formatTileURL(baseURL, tilesetName string) string {
	return fmt.Sprintf("%s/%s/{z}/{x}/{y}.pbf", baseURL, tilesetName)
}
