package tileset

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

	"github.com/vtileserver/vtileserver/internal/conf"
)

// BuildCatalog translates the parsed [[tileset]] config sections into the
// runtime Catalog the service and generator share (spec §3 "Ownership
// summary": the catalog is built once at startup and never mutated after).
func BuildCatalog(tilesetCfgs []conf.TilesetConfig) (*Catalog, error) {
	tilesets := make([]*Tileset, 0, len(tilesetCfgs))
	for _, tc := range tilesetCfgs {
		t, err := buildTileset(tc)
		if err != nil {
			return nil, fmt.Errorf("tileset %q: %w", tc.Name, err)
		}
		tilesets = append(tilesets, t)
	}
	return NewCatalog(tilesets)
}

func buildTileset(tc conf.TilesetConfig) (*Tileset, error) {
	t := &Tileset{
		Name:        tc.Name,
		Extent:      tc.Extent,
		Center:      tc.Center,
		StartZoom:   tc.StartZoom,
		Attribution: tc.Attribution,
		MinZoomVal:  tc.MinZoom,
		MaxZoomVal:  tc.MaxZoom,
		Style:       tc.Style,
	}
	if tc.CacheLimits != nil {
		t.CacheLimits = &CacheLimits{NoCache: tc.CacheLimits.NoCache}
		if tc.CacheLimits.MinZoom != nil {
			t.CacheLimits.MinZoom = *tc.CacheLimits.MinZoom
		}
		if tc.CacheLimits.MaxZoom != nil {
			t.CacheLimits.MaxZoom = *tc.CacheLimits.MaxZoom
		}
	}

	for _, lc := range tc.Layers {
		layer, err := buildLayer(lc)
		if err != nil {
			return nil, err
		}
		t.Layers = append(t.Layers, layer)
	}
	if len(t.Layers) == 0 {
		return nil, fmt.Errorf("no layers configured")
	}
	return t, nil
}

func buildLayer(lc conf.LayerConfig) (*Layer, error) {
	l := &Layer{
		Name:           lc.Name,
		DatasourceName: lc.DatasourceName,
		TableName:      lc.TableName,
		GeometryField:  lc.GeometryField,
		GeometryType:   geometryTypeFromString(lc.GeometryType),
		SRID:           lc.SRID,
		FIDField:       lc.FIDField,
		QueryLimit:     lc.QueryLimit,
		TileSize:       valueOr(lc.TileSize, 0),
		Tolerance:      lc.Tolerance,
		BufferSize:     lc.BufferSize,
		MakeValid:      lc.MakeValid,
		NoTransform:    lc.NoTransform,
		ShiftLongitude: lc.ShiftLongitude,
		Style:          lc.Style,
	}
	if lc.MinZoom != nil {
		l.MinZoomVal = *lc.MinZoom
	}
	if lc.MaxZoom != nil {
		l.MaxZoomVal = *lc.MaxZoom
	}
	if lc.Simplify != nil {
		l.Simplify = *lc.Simplify
	}
	if l.TableName == "" && len(lc.Queries) == 0 {
		return nil, fmt.Errorf("layer %q: needs a table name or at least one query", lc.Name)
	}

	for _, qc := range lc.Queries {
		l.Queries = append(l.Queries, LayerQuery{
			MinZoom:   qc.MinZoom,
			MaxZoom:   qc.MaxZoom,
			Simplify:  qc.Simplify,
			Tolerance: qc.Tolerance,
			SQL:       qc.SQL,
		})
	}
	return l, nil
}

func geometryTypeFromString(s string) GeometryType {
	switch strings.ToLower(s) {
	case "point":
		return GeometryPoint
	case "linestring", "line":
		return GeometryLineString
	case "polygon":
		return GeometryPolygon
	case "multipoint":
		return GeometryMultiPoint
	case "multilinestring":
		return GeometryMultiLineString
	case "multipolygon":
		return GeometryMultiPolygon
	case "geometry", "geometrycollection":
		return GeometryGeometry
	default:
		return GeometryUnspecified
	}
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
