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
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/cache"
)

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status      string                `json:"status"`
	Datasources map[string]string     `json:"datasources"`
	Cache       CacheStatus           `json:"cache"`
}

// CacheStatus reports whether the front cache is enabled and, if so, its
// running statistics.
type CacheStatus struct {
	Enabled bool         `json:"enabled"`
	Stats   *cache.Stats `json:"stats,omitempty"`
}

// handleHealth reports per-datasource connectivity (spec.md §7's
// "Connection" error taxonomy: unreachable datasource is reported, not
// fatal, once serving has begun) and front-cache status.
func handleHealth(w http.ResponseWriter, r *http.Request) *appError {
	log.Debug("service: health check request")

	health := HealthResponse{Status: "ok", Datasources: map[string]string{}}

	for name, ds := range serviceInstance.Datasources {
		if err := ds.Connected(r.Context()); err != nil {
			log.WithError(err).WithField("datasource", name).Warn("service: health check datasource unreachable")
			health.Datasources[name] = "disconnected"
			health.Status = "error"
			continue
		}
		health.Datasources[name] = "connected"
	}

	cacheEnabled := serviceInstance.cache != nil && serviceInstance.cache.Enabled()
	health.Cache = CacheStatus{Enabled: cacheEnabled}
	if cacheEnabled {
		stats := serviceInstance.cache.Stats()
		health.Cache.Stats = &stats
	}

	if health.Status == "ok" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	return writeJSON(w, ContentTypeJSON, health)
}
