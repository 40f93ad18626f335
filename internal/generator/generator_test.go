package generator

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/vtileserver/vtileserver/internal/assembler"
	"github.com/vtileserver/vtileserver/internal/grid"
	"github.com/vtileserver/vtileserver/internal/mvt"
	"github.com/vtileserver/vtileserver/internal/mvtgeom"
	"github.com/vtileserver/vtileserver/internal/tileset"
)

// fakeCache is a thread-safe in-memory cache.Cache used to observe what the
// generator writes without touching the filesystem.
type fakeCache struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{objects: map[string][]byte{}} }

func (c *fakeCache) Info() string    { return "fakecache" }
func (c *fakeCache) BaseURL() string { return "http://localhost/tiles" }

func (c *fakeCache) Read(_ context.Context, path string, sink func(io.Reader) error) (bool, error) {
	c.mu.Lock()
	data, ok := c.objects[path]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, sink(nil)
}

func (c *fakeCache) Write(_ context.Context, path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.objects[path] = cp
	return nil
}

func (c *fakeCache) Exists(_ context.Context, path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[path]
	return ok, nil
}

func (c *fakeCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.objects))
	for k := range c.objects {
		out = append(out, k)
	}
	return out
}

// fakeSource always yields one point feature, recording call count.
type fakeSource struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSource) RetrieveFeatures(
	_ context.Context,
	_ string,
	_ *tileset.Layer,
	_ grid.Extent,
	_ int,
	_, _ float64,
	sink func(mvt.Feature),
) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	sink(mvt.SimpleFeature{
		ID: 1, HasID: true,
		Geom: mvtgeom.GroundGeometry{Kind: mvtgeom.KindPoint, Points: []mvtgeom.GroundPoint{{X: 0, Y: 0}}},
	})
	return 1, nil
}

func testCatalog(t *testing.T) *tileset.Catalog {
	ts := &tileset.Tileset{
		Name: "osm",
		Layers: []*tileset.Layer{
			{Name: "places", MinZoomVal: 0, MaxZoomVal: 1, TileSize: 4096},
		},
	}
	cat, err := tileset.NewCatalog([]*tileset.Tileset{ts})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return cat
}

func newTestGenerator(t *testing.T, src *fakeSource, c *fakeCache) *Generator {
	g := grid.WebMercator()
	a := assembler.New(g, map[string]assembler.FeatureSource{"": src}, "")
	return &Generator{Catalog: testCatalog(t), Grid: g, Assembler: a, Cache: c}
}

func TestRunSeedsMetadataAndWritesTiles(t *testing.T) {
	src := &fakeSource{}
	c := newFakeCache()
	g := newTestGenerator(t, src, c)

	maxZoom := 1
	err := g.Run(context.Background(), Config{MaxZoom: &maxZoom, Nodes: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, key := range []string{"osm.json", "osm.style.json", "osm/metadata.json"} {
		if _, ok := c.objects[key]; !ok {
			t.Errorf("missing seeded metadata key %q, have %v", key, c.keys())
		}
	}

	foundTile := false
	for k := range c.objects {
		if k == "osm/0/0/0.pbf" {
			foundTile = true
		}
	}
	if !foundTile {
		t.Errorf("expected tile key \"osm/0/0/0.pbf\" in cache, have %v", c.keys())
	}
}

func TestRunSkipsExistingUnlessOverwrite(t *testing.T) {
	src := &fakeSource{}
	c := newFakeCache()
	c.objects["osm/0/0/0.pbf"] = []byte("already-cached")
	g := newTestGenerator(t, src, c)

	maxZoom := 0
	if err := g.Run(context.Background(), Config{MaxZoom: &maxZoom, Nodes: 1}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(c.objects["osm/0/0/0.pbf"]) != "already-cached" {
		t.Error("existing tile was overwritten when Overwrite=false")
	}

	if err := g.Run(context.Background(), Config{MaxZoom: &maxZoom, Nodes: 1, Overwrite: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(c.objects["osm/0/0/0.pbf"]) == "already-cached" {
		t.Error("existing tile was not regenerated when Overwrite=true")
	}
}

func TestRunShardsPartitionCellsExactly(t *testing.T) {
	maxZoom := 1
	const shardCount = 4

	written := map[string]bool{}
	var mu sync.Mutex

	for shard := 0; shard < shardCount; shard++ {
		src := &fakeSource{}
		c := newFakeCache()
		g := newTestGenerator(t, src, c)

		if err := g.Run(context.Background(), Config{MaxZoom: &maxZoom, Nodes: shardCount, NodeNo: shard}); err != nil {
			t.Fatalf("Run() shard %d error = %v", shard, err)
		}

		mu.Lock()
		for _, k := range c.keys() {
			if k == "osm.json" || k == "osm.style.json" || k == "osm/metadata.json" {
				continue
			}
			if written[k] {
				t.Errorf("tile key %q generated by more than one shard", k)
			}
			written[k] = true
		}
		mu.Unlock()
	}

	const wantCells = 5 // 1 tile at z0 + 4 tiles at z1 for a full-world WebMercator extent
	if len(written) != wantCells {
		t.Errorf("union of shard outputs has %d tile keys, want %d (sharding must partition exactly)", len(written), wantCells)
	}
}
