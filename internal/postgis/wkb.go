package postgis

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/vtileserver/vtileserver/internal/mvtgeom"
)

// PostGIS's default text output for a geometry column is hex-encoded EWKB
// (HEXEWKB); lib/pq has no OID mapping for the geometry type, so it comes
// back through database/sql as a plain string. decodeGeometry turns that
// string into a GroundGeometry ready for projection.
func decodeGeometry(hexEWKB string) (mvtgeom.GroundGeometry, error) {
	raw, err := hex.DecodeString(hexEWKB)
	if err != nil {
		return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: decode hex geometry: %w", err)
	}
	r := &ewkbReader{r: bytes.NewReader(raw)}
	return r.readGeometry()
}

const (
	ewkbFlagZ    = 0x80000000
	ewkbFlagM    = 0x40000000
	ewkbFlagSRID = 0x20000000
	ewkbTypeMask = 0x000000ff
)

type ewkbReader struct {
	r         *bytes.Reader
	byteOrder binary.ByteOrder
}

func (r *ewkbReader) readHeader() (geomType uint32, srid int, hasZ, hasM bool, err error) {
	var order byte
	if order, err = r.r.ReadByte(); err != nil {
		return
	}
	if order == 0 {
		r.byteOrder = binary.BigEndian
	} else {
		r.byteOrder = binary.LittleEndian
	}
	var raw uint32
	if err = binary.Read(r.r, r.byteOrder, &raw); err != nil {
		return
	}
	hasZ = raw&ewkbFlagZ != 0
	hasM = raw&ewkbFlagM != 0
	geomType = raw & ewkbTypeMask
	if raw&ewkbFlagSRID != 0 {
		var s uint32
		if err = binary.Read(r.r, r.byteOrder, &s); err != nil {
			return
		}
		srid = int(s)
	}
	return
}

func (r *ewkbReader) readFloat64() (float64, error) {
	var bits uint64
	if err := binary.Read(r.r, r.byteOrder, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (r *ewkbReader) readUint32() (uint32, error) {
	var v uint32
	err := binary.Read(r.r, r.byteOrder, &v)
	return v, err
}

func (r *ewkbReader) readPoint(hasZ, hasM bool) (mvtgeom.GroundPoint, error) {
	x, err := r.readFloat64()
	if err != nil {
		return mvtgeom.GroundPoint{}, err
	}
	y, err := r.readFloat64()
	if err != nil {
		return mvtgeom.GroundPoint{}, err
	}
	if hasZ {
		if _, err := r.readFloat64(); err != nil {
			return mvtgeom.GroundPoint{}, err
		}
	}
	if hasM {
		if _, err := r.readFloat64(); err != nil {
			return mvtgeom.GroundPoint{}, err
		}
	}
	return mvtgeom.GroundPoint{X: x, Y: y}, nil
}

func (r *ewkbReader) readPointSeq(hasZ, hasM bool) ([]mvtgeom.GroundPoint, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	pts := make([]mvtgeom.GroundPoint, n)
	for i := range pts {
		p, err := r.readPoint(hasZ, hasM)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	return pts, nil
}

func (r *ewkbReader) readRings(hasZ, hasM bool) ([][]mvtgeom.GroundPoint, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	rings := make([][]mvtgeom.GroundPoint, n)
	for i := range rings {
		ring, err := r.readPointSeq(hasZ, hasM)
		if err != nil {
			return nil, err
		}
		rings[i] = ring
	}
	return rings, nil
}

func (r *ewkbReader) readGeometry() (mvtgeom.GroundGeometry, error) {
	geomType, srid, hasZ, hasM, err := r.readHeader()
	if err != nil {
		return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: read ewkb header: %w", err)
	}

	switch geomType {
	case 1: // Point
		p, err := r.readPoint(hasZ, hasM)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindPoint, SRID: srid, Points: []mvtgeom.GroundPoint{p}}, nil

	case 2: // LineString
		pts, err := r.readPointSeq(hasZ, hasM)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindLineString, SRID: srid, Lines: [][]mvtgeom.GroundPoint{pts}}, nil

	case 3: // Polygon
		rings, err := r.readRings(hasZ, hasM)
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindPolygon, SRID: srid, Polygons: [][][]mvtgeom.GroundPoint{rings}}, nil

	case 4: // MultiPoint
		n, err := r.readUint32()
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		pts := make([]mvtgeom.GroundPoint, n)
		for i := range pts {
			sub, err := r.readGeometry()
			if err != nil {
				return mvtgeom.GroundGeometry{}, err
			}
			if len(sub.Points) != 1 {
				return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: malformed multipoint member")
			}
			pts[i] = sub.Points[0]
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiPoint, SRID: srid, Points: pts}, nil

	case 5: // MultiLineString
		n, err := r.readUint32()
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		lines := make([][]mvtgeom.GroundPoint, n)
		for i := range lines {
			sub, err := r.readGeometry()
			if err != nil {
				return mvtgeom.GroundGeometry{}, err
			}
			if len(sub.Lines) != 1 {
				return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: malformed multilinestring member")
			}
			lines[i] = sub.Lines[0]
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiLineString, SRID: srid, Lines: lines}, nil

	case 6: // MultiPolygon
		n, err := r.readUint32()
		if err != nil {
			return mvtgeom.GroundGeometry{}, err
		}
		polys := make([][][]mvtgeom.GroundPoint, n)
		for i := range polys {
			sub, err := r.readGeometry()
			if err != nil {
				return mvtgeom.GroundGeometry{}, err
			}
			if len(sub.Polygons) != 1 {
				return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: malformed multipolygon member")
			}
			polys[i] = sub.Polygons[0]
		}
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindMultiPolygon, SRID: srid, Polygons: polys}, nil

	case 7: // GeometryCollection
		return mvtgeom.GroundGeometry{Kind: mvtgeom.KindGeometryCollection, SRID: srid}, nil

	default:
		return mvtgeom.GroundGeometry{}, fmt.Errorf("postgis: unsupported ewkb geometry type %d", geomType)
	}
}
