package mvt

// Value is the tagged union of attribute values an MVT Feature can carry.
// Exactly one field is set, selected by Kind.
type Value struct {
	Kind  ValueKind
	Str   string
	Float float32
	Dbl   float64
	Int   int64
	UInt  uint64
	SInt  int64
	Bool  bool
}

type ValueKind int

const (
	KindString ValueKind = iota
	KindFloat
	KindDouble
	KindInt
	KindUInt
	KindSInt
	KindBool
)

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func FloatValue(f float32) Value  { return Value{Kind: KindFloat, Float: f} }
func DoubleValue(f float64) Value { return Value{Kind: KindDouble, Dbl: f} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func UIntValue(u uint64) Value    { return Value{Kind: KindUInt, UInt: u} }
func SIntValue(i int64) Value     { return Value{Kind: KindSInt, SInt: i} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }

// Equal reports whether two Values are the same tagged variant with the same
// payload — used for the per-layer value-dictionary linear-scan dedup.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindFloat:
		return v.Float == o.Float
	case KindDouble:
		return v.Dbl == o.Dbl
	case KindInt:
		return v.Int == o.Int
	case KindUInt:
		return v.UInt == o.UInt
	case KindSInt:
		return v.SInt == o.SInt
	case KindBool:
		return v.Bool == o.Bool
	}
	return false
}

// Attribute is a single key/value pair a Feature exposes. StringList values
// are expanded by the encoder, not here.
type Attribute struct {
	Key   string
	Value Value
	// List holds element values when this attribute is a string-list;
	// when non-nil, the encoder expands one tag pair per element using
	// the synthesised key "{Key}.{element}", reusing
	// Value for every exploded pair (source behaviour preserved, see
	// DESIGN.md).
	List []string
}

// GeometryType enumerates the MVT wire geometry classification.
type GeometryType int32

const (
	GeomUnknown GeometryType = iota
	GeomPoint
	GeomLineString
	GeomPolygon
)
