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

	"github.com/vtileserver/vtileserver/internal/tileset"
)

// IndexLayer describes one layer of a tileset in the /index.json response.
type IndexLayer struct {
	Name         string `json:"name"`
	GeometryType string `json:"geometry_type"`
}

// IndexTileset describes one tileset in the /index.json response.
type IndexTileset struct {
	Name      string       `json:"name"`
	Supported bool         `json:"supported"`
	Layers    []IndexLayer `json:"layers"`
}

// IndexResponse is the /index.json body: spec.md §6 "list of known
// tilesets with supported flag and layer geometry types".
type IndexResponse struct {
	Tilesets []IndexTileset `json:"tilesets"`
}

// handleIndex lists every tileset in the catalog.
func handleIndex(w http.ResponseWriter, r *http.Request) *appError {
	log.Debug("service: tileset index request")

	resp := IndexResponse{}
	for _, ts := range serviceInstance.Catalog.All() {
		resp.Tilesets = append(resp.Tilesets, indexEntry(ts))
	}

	return writeJSON(w, ContentTypeJSON, resp)
}

func indexEntry(ts *tileset.Tileset) IndexTileset {
	entry := IndexTileset{Name: ts.Name, Supported: true}
	for _, l := range ts.Layers {
		entry.Layers = append(entry.Layers, IndexLayer{
			Name:         l.Name,
			GeometryType: l.GeometryType.String(),
		})
	}
	return entry
}
