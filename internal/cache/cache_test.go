package cache

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestTilePathFormat(t *testing.T) {
	got := TilePath("osm", 12, 2047, 1362)
	want := "osm/12/2047/1362.pbf"
	if got != want {
		t.Errorf("TilePath() = %q, want %q", got, want)
	}
}

func TestNocacheAlwaysMisses(t *testing.T) {
	var c Nocache
	ctx := context.Background()

	found, err := c.Read(ctx, "osm/0/0/0.pbf", func(io.Reader) error {
		t.Fatal("sink should not be invoked on a Nocache read")
		return nil
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if found {
		t.Error("Read() found = true, want false")
	}

	if err := c.Write(ctx, "osm/0/0/0.pbf", []byte("tile")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	exists, err := c.Exists(ctx, "osm/0/0/0.pbf")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true, want false after Nocache Write")
	}
}

// memCache is a minimal in-memory Cache used to exercise LRUFrontCache
// without touching the filesystem or a network endpoint.
type memCache struct {
	data  map[string][]byte
	reads int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Info() string    { return "memcache" }
func (m *memCache) BaseURL() string { return "" }

func (m *memCache) Read(_ context.Context, path string, sink func(io.Reader) error) (bool, error) {
	m.reads++
	data, ok := m.data[path]
	if !ok {
		return false, nil
	}
	return true, sink(bytes.NewReader(data))
}

func (m *memCache) Write(_ context.Context, path string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[path] = cp
	return nil
}

func (m *memCache) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.data[path]
	return ok, nil
}
