package mvt

import "github.com/vtileserver/vtileserver/internal/grid"

// BuildLayer projects and encodes a slice of Features into a finished Layer:
// each feature's ground geometry is projected into tile-local screen space,
// command-stream encoded, and added to the layer's feature list together
// with its attribute tags. Features whose geometry encodes to an empty
// command stream are dropped, matching the MVT requirement that a Feature
// carry a non-empty geometry.
func BuildLayer(name string, extent grid.Extent, tileSize uint32, reverseY bool, features []Feature) *Layer {
	layer := NewLayer(name, tileSize)
	for _, f := range features {
		screen := ProjectGeometry(f.Geometry(), extent, reverseY, tileSize)
		cmds, gtype := EncodeGeometry(screen)
		if len(cmds) == 0 {
			continue
		}
		id, hasID := f.FID()
		layer.AddFeature(id, hasID, f.Attributes(), cmds, gtype)
	}
	return layer
}
