package mvt

import "github.com/vtileserver/vtileserver/internal/mvtgeom"

// Feature is the contract a datasource row must satisfy to be encoded into
// an MVT Layer. Implementations are opaque to the encoder; PostGIS and OGR
// datasources each yield their own concrete type.
type Feature interface {
	FID() (uint64, bool)
	Attributes() []Attribute
	Geometry() mvtgeom.GroundGeometry
}

// SimpleFeature is a concrete, allocation-light Feature used by tests and by
// datasources that materialise rows eagerly rather than streaming them.
type SimpleFeature struct {
	ID   uint64
	HasID bool
	Attrs []Attribute
	Geom  mvtgeom.GroundGeometry
}

func (f SimpleFeature) FID() (uint64, bool)     { return f.ID, f.HasID }
func (f SimpleFeature) Attributes() []Attribute { return f.Attrs }
func (f SimpleFeature) Geometry() mvtgeom.GroundGeometry { return f.Geom }
