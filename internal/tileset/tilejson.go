package tileset

import "encoding/json"

// vectorLayerTypeName maps a layer's GeometryType to the TileJSON/Mapbox
// style "type" string used to describe vector layers.
func vectorLayerTypeName(g GeometryType) string {
	switch g {
	case GeometryPoint, GeometryMultiPoint:
		return "point"
	case GeometryLineString, GeometryMultiLineString:
		return "line"
	case GeometryPolygon, GeometryMultiPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

type tileJSONVectorLayer struct {
	ID          string   `json:"id"`
	Fields      struct{} `json:"fields"`
	MinZoom     int      `json:"minzoom,omitempty"`
	MaxZoom     int      `json:"maxzoom,omitempty"`
	Description string   `json:"description,omitempty"`
}

// tileJSON is the subset of TileJSON 3.x this server generates; it is kept
// deliberately small since the server only ever emits it, never parses it.
type tileJSON struct {
	TileJSON    string                `json:"tilejson"`
	Name        string                `json:"name"`
	Tiles       []string              `json:"tiles"`
	VectorLayers []tileJSONVectorLayer `json:"vector_layers"`
	Bounds      [4]float64            `json:"bounds"`
	Center      [3]float64            `json:"center"`
	MinZoom     int                   `json:"minzoom"`
	MaxZoom     int                   `json:"maxzoom"`
	Attribution string                `json:"attribution,omitempty"`
}

// GenerateTileJSON builds the TileJSON 3.x document for a tileset. baseURL
// is the externally reachable root the tile endpoint is served from (e.g.
// "https://tiles.example.com").
func GenerateTileJSON(t *Tileset, gridMinZoom, gridMaxZoom int, baseURL string) ([]byte, error) {
	doc := tileJSON{
		TileJSON:    "3.0.0",
		Name:        t.Name,
		Tiles:       []string{baseURL + "/" + t.Name + "/{z}/{x}/{y}.pbf"},
		Attribution: t.Attribution,
	}
	if t.Extent != nil {
		doc.Bounds = *t.Extent
	} else {
		doc.Bounds = [4]float64{-180, -85.0511, 180, 85.0511}
	}
	if t.Center != nil {
		doc.Center = [3]float64{t.Center[0], t.Center[1], float64(t.StartZoom)}
	} else {
		doc.Center = [3]float64{0, 0, float64(t.StartZoom)}
	}
	doc.MinZoom = gridMinZoom
	if t.MinZoomVal != nil {
		doc.MinZoom = *t.MinZoomVal
	}
	doc.MaxZoom = gridMaxZoom
	if t.MaxZoomVal != nil {
		doc.MaxZoom = *t.MaxZoomVal
	}
	for _, l := range t.Layers {
		doc.VectorLayers = append(doc.VectorLayers, tileJSONVectorLayer{
			ID:          l.Name,
			MinZoom:     l.MinZoom(),
			MaxZoom:     l.MaxZoom(gridMaxZoom),
			Description: vectorLayerTypeName(l.GeometryType) + " layer",
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
