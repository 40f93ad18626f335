package mvt

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers for the vector_tile.proto messages (Mapbox Vector Tile
// spec 2.1 §4). Hand-assembled with protowire rather than generated code,
// since go generate/protoc are off limits here.
const (
	fieldTileLayers = 3

	fieldLayerName     = 1
	fieldLayerFeatures = 2
	fieldLayerKeys     = 3
	fieldLayerValues   = 4
	fieldLayerExtent   = 5
	fieldLayerVersion  = 15

	fieldFeatureID       = 1
	fieldFeatureTags     = 2
	fieldFeatureType     = 3
	fieldFeatureGeometry = 4

	fieldValueString = 1
	fieldValueFloat  = 2
	fieldValueDouble = 3
	fieldValueInt    = 4
	fieldValueUint   = 5
	fieldValueSint   = 6
	fieldValueBool   = 7

	layerVersion = 2
)

// appendPackedVarint appends a length-delimited field carrying a sequence of
// varints with no per-element tags, as MVT requires for tags/geometry.
func appendPackedVarint(b []byte, num protowire.Number, vals []uint32) []byte {
	if len(vals) == 0 {
		return b
	}
	var inner []byte
	for _, v := range vals {
		inner = protowire.AppendVarint(inner, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

// MarshalValue serialises a Value as an MVT Value message.
func MarshalValue(v Value) []byte {
	var b []byte
	switch v.Kind {
	case KindString:
		b = protowire.AppendTag(b, fieldValueString, protowire.BytesType)
		b = protowire.AppendString(b, v.Str)
	case KindFloat:
		b = protowire.AppendTag(b, fieldValueFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v.Float))
	case KindDouble:
		b = protowire.AppendTag(b, fieldValueDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Dbl))
	case KindInt:
		b = protowire.AppendTag(b, fieldValueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Int))
	case KindUInt:
		b = protowire.AppendTag(b, fieldValueUint, protowire.VarintType)
		b = protowire.AppendVarint(b, v.UInt)
	case KindSInt:
		b = protowire.AppendTag(b, fieldValueSint, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.SInt))
	case KindBool:
		b = protowire.AppendTag(b, fieldValueBool, protowire.VarintType)
		v64 := uint64(0)
		if v.Bool {
			v64 = 1
		}
		b = protowire.AppendVarint(b, v64)
	}
	return b
}

// MarshalFeature serialises an EncodedFeature as an MVT Feature message.
func MarshalFeature(f EncodedFeature) []byte {
	var b []byte
	if f.HasID {
		b = protowire.AppendTag(b, fieldFeatureID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.ID)
	}
	b = appendPackedVarint(b, fieldFeatureTags, f.Tags)
	if f.Type != GeomUnknown {
		b = protowire.AppendTag(b, fieldFeatureType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.Type))
	}
	b = appendPackedVarint(b, fieldFeatureGeometry, f.Geometry)
	return b
}

// Marshal serialises a Layer as an MVT Layer message.
func (l *Layer) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldLayerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, layerVersion)

	b = protowire.AppendTag(b, fieldLayerName, protowire.BytesType)
	b = protowire.AppendString(b, l.Name)

	for _, f := range l.Features {
		b = protowire.AppendTag(b, fieldLayerFeatures, protowire.BytesType)
		b = protowire.AppendBytes(b, MarshalFeature(f))
	}
	for _, k := range l.keys {
		b = protowire.AppendTag(b, fieldLayerKeys, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	for _, v := range l.values {
		b = protowire.AppendTag(b, fieldLayerValues, protowire.BytesType)
		b = protowire.AppendBytes(b, MarshalValue(v))
	}

	extent := l.Extent
	if extent == 0 {
		extent = DefaultExtent
	}
	b = protowire.AppendTag(b, fieldLayerExtent, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(extent))

	return b
}

// Tile is the top-level MVT container: an ordered set of named Layers.
type Tile struct {
	Layers []*Layer
}

// AddLayer appends l to the tile's layer list.
func (t *Tile) AddLayer(l *Layer) { t.Layers = append(t.Layers, l) }

// Marshal serialises the Tile into its MVT protobuf wire form.
func (t *Tile) Marshal() []byte {
	var b []byte
	for _, l := range t.Layers {
		b = protowire.AppendTag(b, fieldTileLayers, protowire.BytesType)
		b = protowire.AppendBytes(b, l.Marshal())
	}
	return b
}

// DefaultExtent is the MVT tile coordinate extent used when a layer does not
// specify one explicitly (spec §4.B, vector_tile.proto default).
const DefaultExtent = 4096
