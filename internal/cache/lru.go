package cache

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// LRUFrontCache wraps a Cache backend with an in-memory LRU layer, so that
// hot tiles are served without a round trip to the filesystem or object
// store. It satisfies Cache itself, so it can be layered in front of any
// Filecache/S3Cache/Nocache backend transparently.
type LRUFrontCache struct {
	backend     Cache
	cache       *lru.Cache[string, []byte]
	enabled     bool
	maxMemoryMB int64

	hits         atomic.Int64
	misses       atomic.Int64
	evictions    atomic.Int64
	currentSize  atomic.Int64
	currentBytes atomic.Int64
}

// Stats represents cache statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Size        int     `json:"size"` // Number of items
	MemoryBytes int64   `json:"memory_bytes"`
	HitRate     float64 `json:"hit_rate"` // Percentage
}

// NewLRUFrontCache layers an in-memory LRU of at most maxItems tiles (capped
// by maxMemoryMB of resident bytes, if positive) in front of backend.
func NewLRUFrontCache(backend Cache, maxItems int, maxMemoryMB int) (*LRUFrontCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("maxItems must be positive, got %d", maxItems)
	}

	fc := &LRUFrontCache{
		backend:     backend,
		enabled:     true,
		maxMemoryMB: int64(maxMemoryMB),
	}

	cache, err := lru.NewWithEvict(maxItems, fc.onEvict)
	if err != nil {
		return nil, err
	}
	fc.cache = cache

	log.Infof("Initialized tile cache front: backend=%s max_items=%d max_memory=%dMB", backend.Info(), maxItems, maxMemoryMB)
	return fc, nil
}

// NewDisabledFrontCache returns a front cache that passes every call straight
// through to backend without ever consulting the in-memory layer.
func NewDisabledFrontCache(backend Cache) *LRUFrontCache {
	return &LRUFrontCache{backend: backend, enabled: false}
}

func (fc *LRUFrontCache) Info() string    { return fmt.Sprintf("lru+%s", fc.backend.Info()) }
func (fc *LRUFrontCache) BaseURL() string { return fc.backend.BaseURL() }

// Read serves path from the in-memory layer when present, otherwise falls
// through to the backend and populates the in-memory layer on success.
func (fc *LRUFrontCache) Read(ctx context.Context, path string, sink func(io.Reader) error) (bool, error) {
	if !fc.enabled {
		return fc.backend.Read(ctx, path, sink)
	}

	if tile, ok := fc.cache.Get(path); ok {
		fc.hits.Add(1)
		log.Debugf("Cache HIT: %s", path)
		if err := sink(bytes.NewReader(tile)); err != nil {
			return true, fmt.Errorf("cache: consume %q: %w", path, err)
		}
		return true, nil
	}
	fc.misses.Add(1)
	log.Debugf("Cache MISS: %s", path)

	var buf bytes.Buffer
	found, err := fc.backend.Read(ctx, path, func(r io.Reader) error {
		if _, err := io.Copy(&buf, r); err != nil {
			return err
		}
		return sink(bytes.NewReader(buf.Bytes()))
	})
	if err != nil || !found {
		return found, err
	}
	fc.put(path, buf.Bytes())
	return true, nil
}

// Write stores data in the backend, then warms the in-memory layer.
func (fc *LRUFrontCache) Write(ctx context.Context, path string, data []byte) error {
	if err := fc.backend.Write(ctx, path, data); err != nil {
		return err
	}
	if fc.enabled {
		fc.put(path, data)
	}
	return nil
}

func (fc *LRUFrontCache) Exists(ctx context.Context, path string) (bool, error) {
	if fc.enabled {
		if _, ok := fc.cache.Get(path); ok {
			return true, nil
		}
	}
	return fc.backend.Exists(ctx, path)
}

func (fc *LRUFrontCache) put(path string, data []byte) {
	if len(data) == 0 {
		return
	}
	tileSize := int64(len(data))

	if fc.maxMemoryMB > 0 {
		limit := fc.maxMemoryMB * 1024 * 1024
		for fc.cache.Len() > 0 && fc.currentBytes.Load()+tileSize > limit {
			log.Debugf("Cache memory limit reached, evicting to make space")
			fc.cache.RemoveOldest()
		}
	}

	tileCopy := make([]byte, len(data))
	copy(tileCopy, data)

	fc.cache.Add(path, tileCopy)
	fc.currentBytes.Add(tileSize)
	fc.currentSize.Add(1)
	log.Debugf("Cache SET: %s (%d bytes)", path, tileSize)
}

// onEvict is called when an item is evicted from the LRU cache
func (fc *LRUFrontCache) onEvict(key string, value []byte) {
	fc.evictions.Add(1)
	fc.currentSize.Add(-1)
	fc.currentBytes.Add(-int64(len(value)))
	log.Debugf("Cache EVICT: %s", key)
}

// Clear removes all items from the in-memory layer (the backend is untouched).
func (fc *LRUFrontCache) Clear() {
	if !fc.enabled {
		return
	}
	fc.cache.Purge()
	fc.currentSize.Store(0)
	fc.currentBytes.Store(0)
	log.Info("Cache cleared")
}

// ClearTileset removes all in-memory entries belonging to tileset.
func (fc *LRUFrontCache) ClearTileset(tileset string) int {
	if !fc.enabled {
		return 0
	}

	removed := 0
	prefix := tileset + "/"
	for _, key := range fc.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			fc.cache.Remove(key)
			removed++
		}
	}

	log.Infof("Cleared %d tiles for tileset %s", removed, tileset)
	return removed
}

// Stats returns current in-memory cache statistics.
func (fc *LRUFrontCache) Stats() Stats {
	if !fc.enabled {
		return Stats{}
	}

	hits := fc.hits.Load()
	misses := fc.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100.0
	}

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Evictions:   fc.evictions.Load(),
		Size:        fc.cache.Len(),
		MemoryBytes: fc.currentBytes.Load(),
		HitRate:     hitRate,
	}
}

// Enabled returns whether the in-memory layer is active.
func (fc *LRUFrontCache) Enabled() bool {
	return fc.enabled
}
