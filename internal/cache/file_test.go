package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFilecacheWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fc := NewFilecache(dir, "http://localhost/tiles")
	ctx := context.Background()

	path := "osm/3/4/2.pbf"
	payload := []byte{0x1f, 0x8b, 0x00, 0x01, 0x02}

	if err := fc.Write(ctx, path, payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got []byte
	found, err := fc.Read(ctx, path, func(r io.Reader) error {
		b, err := io.ReadAll(r)
		got = b
		return err
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !found {
		t.Fatal("Read() found = false, want true")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read() payload = %v, want %v", got, payload)
	}

	exists, err := fc.Exists(ctx, path)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false, want true after Write")
	}
}

func TestFilecacheReadMissingReturnsNoError(t *testing.T) {
	fc := NewFilecache(t.TempDir(), "")
	ctx := context.Background()

	found, err := fc.Read(ctx, "osm/9/9/9.pbf", func(io.Reader) error {
		t.Fatal("sink should not run on a cache miss")
		return nil
	})
	if err != nil {
		t.Fatalf("Read() error = %v, want nil on miss", err)
	}
	if found {
		t.Error("Read() found = true, want false")
	}
}

func TestFilecacheWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fc := NewFilecache(dir, "")
	ctx := context.Background()

	if err := fc.Write(ctx, "osm/1/0/0.pbf", []byte("tile")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "osm", "1", "0"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".pbf" {
			t.Errorf("leftover non-tile file in cache directory: %s", e.Name())
		}
	}
}
