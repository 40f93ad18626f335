package postgis

import "sync"

// Registry is the query registry of spec §3: tileset_name → layer_name →
// zoom → PreparedQuery. Populated once via PrepareQueries before serving
// begins; safe for concurrent readers thereafter (writes during startup are
// still guarded for tests that build the registry concurrently).
type Registry struct {
	mu   sync.RWMutex
	data map[string]map[string]map[int]*PreparedQuery
}

func NewRegistry() *Registry {
	return &Registry{data: make(map[string]map[string]map[int]*PreparedQuery)}
}

func (r *Registry) Put(tilesetName, layerName string, z int, pq *PreparedQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	layers, ok := r.data[tilesetName]
	if !ok {
		layers = make(map[string]map[int]*PreparedQuery)
		r.data[tilesetName] = layers
	}
	zooms, ok := layers[layerName]
	if !ok {
		zooms = make(map[int]*PreparedQuery)
		layers[layerName] = zooms
	}
	zooms[z] = pq
}

func (r *Registry) Get(tilesetName, layerName string, z int) (*PreparedQuery, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layers, ok := r.data[tilesetName]
	if !ok {
		return nil, false
	}
	zooms, ok := layers[layerName]
	if !ok {
		return nil, false
	}
	pq, ok := zooms[z]
	return pq, ok
}

// HasZoom reports whether a prepared query exists for (tileset, layer, z),
// the per-zoom invariant of spec §3 ("either an entry exists for every zoom
// in range or the layer is misconfigured"). No startup step calls it.
func (r *Registry) HasZoom(tilesetName, layerName string, z int) bool {
	_, ok := r.Get(tilesetName, layerName, z)
	return ok
}
