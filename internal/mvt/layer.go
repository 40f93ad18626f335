package mvt

import "fmt"

// Layer accumulates MVT features and the shared key/value attribute
// dictionary for a single named layer in a Tile.
type Layer struct {
	Name   string
	Extent uint32 // MVT tile_size, default 4096

	keys   []string
	keyIdx map[string]uint32
	values []Value

	Features []EncodedFeature
}

// EncodedFeature is a feature that has already been geometry-encoded and
// whose attributes have been resolved against the layer dictionary.
type EncodedFeature struct {
	ID       uint64
	HasID    bool
	Tags     []uint32 // alternating key_index, value_index pairs
	Type     GeometryType
	Geometry []uint32
}

// NewLayer creates an empty layer with the given MVT tile extent.
func NewLayer(name string, extent uint32) *Layer {
	return &Layer{
		Name:   name,
		Extent: extent,
		keyIdx: make(map[string]uint32),
	}
}

func (l *Layer) internKey(key string) uint32 {
	if idx, ok := l.keyIdx[key]; ok {
		return idx
	}
	idx := uint32(len(l.keys))
	l.keys = append(l.keys, key)
	l.keyIdx[key] = idx
	return idx
}

// internValue performs a linear-scan dedup against already-seen values, as
// the reference implementation does (dictionaries are small per tile).
func (l *Layer) internValue(v Value) uint32 {
	for i, existing := range l.values {
		if existing.Equal(v) {
			return uint32(i)
		}
	}
	idx := uint32(len(l.values))
	l.values = append(l.values, v)
	return idx
}

// AddFeature encodes attrs against the layer's dictionary and appends the
// feature if its geometry command stream is non-empty. It reports whether
// the feature was added.
func (l *Layer) AddFeature(id uint64, hasID bool, attrs []Attribute, geomCmds []uint32, gtype GeometryType) bool {
	if len(geomCmds) == 0 {
		return false
	}
	tags := make([]uint32, 0, len(attrs)*2)
	for _, a := range attrs {
		if a.List != nil {
			// String-list attributes expand into one tag pair per element,
			// keyed "{key}.{element}", reusing the shared Value for every
			// pair. This reproduces the source behaviour flagged in
			// DESIGN.md rather than synthesising a per-element value.
			for _, elem := range a.List {
				key := fmt.Sprintf("%s.%s", a.Key, elem)
				ki := l.internKey(key)
				vi := l.internValue(a.Value)
				tags = append(tags, ki, vi)
			}
			continue
		}
		ki := l.internKey(a.Key)
		vi := l.internValue(a.Value)
		tags = append(tags, ki, vi)
	}
	l.Features = append(l.Features, EncodedFeature{
		ID: id, HasID: hasID, Tags: tags, Type: gtype, Geometry: geomCmds,
	})
	return true
}

// Keys returns the layer's interned key dictionary in insertion order.
func (l *Layer) Keys() []string { return l.keys }

// Values returns the layer's interned value dictionary in insertion order.
func (l *Layer) Values() []Value { return l.values }
