package cache

import (
	"context"
	"io"
	"testing"
)

func TestLRUFrontCacheServesFromMemoryOnSecondRead(t *testing.T) {
	backend := newMemCache()
	front, err := NewLRUFrontCache(backend, 8, 0)
	if err != nil {
		t.Fatalf("NewLRUFrontCache() error = %v", err)
	}
	ctx := context.Background()

	path := "osm/5/1/1.pbf"
	if err := front.Write(ctx, path, []byte("tile-bytes")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	readsBeforeSecondGet := backend.reads
	found, err := front.Read(ctx, path, func(r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !found {
		t.Fatal("Read() found = false, want true")
	}
	if backend.reads != readsBeforeSecondGet {
		t.Errorf("backend.reads = %d, want unchanged (served from memory)", backend.reads)
	}

	stats := front.Stats()
	if stats.Hits == 0 {
		t.Error("Stats().Hits = 0, want at least 1 after a memory hit")
	}
}

func TestLRUFrontCacheFallsThroughToBackendOnMiss(t *testing.T) {
	backend := newMemCache()
	if err := backend.Write(context.Background(), "osm/2/0/0.pbf", []byte("from-backend")); err != nil {
		t.Fatalf("backend.Write() error = %v", err)
	}

	front, err := NewLRUFrontCache(backend, 8, 0)
	if err != nil {
		t.Fatalf("NewLRUFrontCache() error = %v", err)
	}

	var got []byte
	found, err := front.Read(context.Background(), "osm/2/0/0.pbf", func(r io.Reader) error {
		b, err := io.ReadAll(r)
		got = b
		return err
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !found || string(got) != "from-backend" {
		t.Errorf("Read() = (%q, %v), want (\"from-backend\", true)", got, found)
	}
}

func TestLRUFrontCacheClearTilesetPrefixMatches(t *testing.T) {
	backend := newMemCache()
	front, err := NewLRUFrontCache(backend, 8, 0)
	if err != nil {
		t.Fatalf("NewLRUFrontCache() error = %v", err)
	}
	ctx := context.Background()

	_ = front.Write(ctx, "osm/0/0/0.pbf", []byte("a"))
	_ = front.Write(ctx, "osm/1/0/0.pbf", []byte("b"))
	_ = front.Write(ctx, "other/0/0/0.pbf", []byte("c"))

	removed := front.ClearTileset("osm")
	if removed != 2 {
		t.Errorf("ClearTileset(\"osm\") = %d, want 2", removed)
	}
	if front.Stats().Size != 1 {
		t.Errorf("Stats().Size after ClearTileset = %d, want 1", front.Stats().Size)
	}
}

func TestDisabledFrontCachePassesThrough(t *testing.T) {
	backend := newMemCache()
	front := NewDisabledFrontCache(backend)
	ctx := context.Background()

	if err := front.Write(ctx, "osm/0/0/0.pbf", []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if front.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if front.Stats() != (Stats{}) {
		t.Error("Stats() on disabled front cache should be zero value")
	}
}
