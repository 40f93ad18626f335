package tileset

import "encoding/json"

type styleLayer struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source,omitempty"`
	SourceLayer string                 `json:"source-layer,omitempty"`
	Paint       map[string]interface{} `json:"paint,omitempty"`
}

type glStyle struct {
	Version int                    `json:"version"`
	Name    string                 `json:"name"`
	Sources map[string]interface{} `json:"sources"`
	Layers  []styleLayer           `json:"layers"`
}

func defaultPaint(g GeometryType) map[string]interface{} {
	switch {
	case g.IsPolygonal():
		return map[string]interface{}{"fill-color": "#888888", "fill-opacity": 0.4}
	case g.IsLinear():
		return map[string]interface{}{"line-color": "#555555", "line-width": 1}
	default:
		return map[string]interface{}{"circle-color": "#007cbf", "circle-radius": 3}
	}
}

func glLayerType(g GeometryType) string {
	switch {
	case g.IsPolygonal():
		return "fill"
	case g.IsLinear():
		return "line"
	default:
		return "circle"
	}
}

// GenerateStyle builds a Mapbox GL style shell for a tileset: a background
// layer plus one layer per vector layer, with any inline layer style merged
// over the default paint.
func GenerateStyle(t *Tileset, tileJSONURL string) ([]byte, error) {
	style := glStyle{
		Version: 8,
		Name:    t.Name,
		Sources: map[string]interface{}{
			t.Name: map[string]interface{}{
				"type": "vector",
				"url":  tileJSONURL,
			},
		},
		Layers: []styleLayer{
			{ID: "background", Type: "background", Paint: map[string]interface{}{"background-color": "#f8f4f0"}},
		},
	}
	for _, l := range t.Layers {
		sl := styleLayer{
			ID:          l.Name,
			Type:        glLayerType(l.GeometryType),
			Source:      t.Name,
			SourceLayer: l.Name,
			Paint:       defaultPaint(l.GeometryType),
		}
		if l.Style != nil {
			if paintVal, ok := l.Style["paint"].(map[string]interface{}); ok {
				for k, v := range paintVal {
					sl.Paint[k] = v
				}
			}
			if typeVal, ok := l.Style["type"].(string); ok {
				sl.Type = typeVal
			}
		}
		style.Layers = append(style.Layers, sl)
	}
	if t.Style != nil {
		if bg, ok := t.Style["background"].(map[string]interface{}); ok {
			style.Layers[0].Paint = bg
		}
	}
	return json.MarshalIndent(style, "", "  ")
}
