package tileset

import "fmt"

// Catalog is the service's read-only, post-startup view of every configured
// tileset, keyed by name. Populated once during startup and never mutated
// while serving (spec §3 "Ownership summary").
type Catalog struct {
	tilesets map[string]*Tileset
	order    []string
}

// NewCatalog builds a Catalog from a slice of tilesets, preserving their
// original declaration order for the /index.json listing.
func NewCatalog(tilesets []*Tileset) (*Catalog, error) {
	c := &Catalog{tilesets: make(map[string]*Tileset, len(tilesets))}
	for _, t := range tilesets {
		if _, dup := c.tilesets[t.Name]; dup {
			return nil, fmt.Errorf("tileset: duplicate tileset name %q", t.Name)
		}
		c.tilesets[t.Name] = t
		c.order = append(c.order, t.Name)
	}
	return c, nil
}

// Get looks up a tileset by name.
func (c *Catalog) Get(name string) (*Tileset, bool) {
	t, ok := c.tilesets[name]
	return t, ok
}

// Names returns every tileset name in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns every tileset in declaration order.
func (c *Catalog) All() []*Tileset {
	out := make([]*Tileset, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.tilesets[n])
	}
	return out
}
