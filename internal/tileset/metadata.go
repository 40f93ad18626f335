package tileset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// mbtilesVectorLayer mirrors the "vector_layers" entry of the MBTiles
// metadata.json spec (used by clients like Mapbox/MapLibre for style
// authoring without fetching a full TileJSON).
type mbtilesVectorLayer struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

type mbtilesMetadata struct {
	Name        string               `json:"name"`
	Format      string               `json:"format"`
	Bounds      string               `json:"bounds"`
	Center      string               `json:"center"`
	MinZoom     string               `json:"minzoom"`
	MaxZoom     string               `json:"maxzoom"`
	Attribution string               `json:"attribution,omitempty"`
	JSON        string               `json:"json"`
	VectorLayers []mbtilesVectorLayer `json:"-"`
}

// GenerateMBTilesMetadata builds the MBTiles-compatible metadata.json
// document for a tileset (spec §6, GET /{tileset}/metadata.json).
func GenerateMBTilesMetadata(t *Tileset, gridMinZoom, gridMaxZoom int) ([]byte, error) {
	bounds := [4]float64{-180, -85.0511, 180, 85.0511}
	if t.Extent != nil {
		bounds = *t.Extent
	}
	minZoom, maxZoom := gridMinZoom, gridMaxZoom
	if t.MinZoomVal != nil {
		minZoom = *t.MinZoomVal
	}
	if t.MaxZoomVal != nil {
		maxZoom = *t.MaxZoomVal
	}
	center := [2]float64{0, 0}
	if t.Center != nil {
		center = *t.Center
	}

	layers := make([]mbtilesVectorLayer, 0, len(t.Layers))
	for _, l := range t.Layers {
		layers = append(layers, mbtilesVectorLayer{ID: l.Name, Fields: map[string]string{}})
	}
	jsonField, err := json.Marshal(struct {
		VectorLayers []mbtilesVectorLayer `json:"vector_layers"`
	}{layers})
	if err != nil {
		return nil, fmt.Errorf("tileset: marshal metadata json field: %w", err)
	}

	doc := mbtilesMetadata{
		Name:        t.Name,
		Format:      "pbf",
		Bounds:      formatFloats(bounds[:]),
		Center:      formatFloats([]float64{center[0], center[1], float64(t.StartZoom)}),
		MinZoom:     fmt.Sprintf("%d", minZoom),
		MaxZoom:     fmt.Sprintf("%d", maxZoom),
		Attribution: t.Attribution,
		JSON:        string(jsonField),
	}
	return json.MarshalIndent(doc, "", "  ")
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ",")
}
