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
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/assembler"
	"github.com/vtileserver/vtileserver/internal/cache"
	"github.com/vtileserver/vtileserver/internal/conf"
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// Service bundles everything a request handler needs: the tileset catalog,
// the grid, the tile assembler, the cache, and the datasources (consulted
// directly only by the health check). Spec.md §3's ownership summary: "the
// service exclusively owns the Grid, the Datasource registry, the Tileset
// catalog, and the Cache."
type Service struct {
	Catalog     *tileset.Catalog
	Grid        *grid.Grid
	Assembler   *assembler.Assembler
	cache       *cache.LRUFrontCache
	Datasources map[string]assembler.Datasource
}

// SetCache installs the front cache. Separate from the Service literal
// since callers build it from the configured backend after constructing
// the rest of Service.
func (s *Service) SetCache(c *cache.LRUFrontCache) {
	s.cache = c
}

// serviceInstance is the process-wide Service, set by Initialize and read
// by every handler — following the teacher's package-level singleton
// shape, since a single *http.Server is ever constructed per process.
var serviceInstance *Service

// Initialize installs svc as the package's serving state. It must run
// before Serve.
func Initialize(svc *Service) {
	serviceInstance = svc
}

// Serve blocks, running the HTTP server until ctx is cancelled or a fatal
// server error occurs.
func Serve(ctx context.Context) error {
	if serviceInstance == nil {
		return fmt.Errorf("service: Initialize must be called before Serve")
	}

	router := initRouter(conf.Configuration.Webserver.BasePath)
	addr := fmt.Sprintf("%s:%d", conf.Configuration.Webserver.Bind, conf.Configuration.Webserver.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("service: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("service: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("service: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
