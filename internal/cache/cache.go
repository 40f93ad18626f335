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

// Package cache implements the tile cache's common contract and its
// Nocache/Filecache/S3Cache backends, plus an optional in-memory LRU
// front layer.
package cache

import (
	"context"
	"io"
)

// Cache is the backing-store contract every variant satisfies (spec §4.G).
type Cache interface {
	// Info is a human-readable description of the backend, for startup logs.
	Info() string
	// BaseURL is the public URL prefix generated metadata documents should
	// point clients at.
	BaseURL() string
	// Read invokes sink with the stored bytes for path, returning false
	// without calling sink on a cache miss.
	Read(ctx context.Context, path string, sink func(io.Reader) error) (bool, error)
	// Write stores data at path, creating any parent structure on demand.
	Write(ctx context.Context, path string, data []byte) error
	// Exists reports whether path is present without reading its contents.
	Exists(ctx context.Context, path string) (bool, error)
}

// TilePath builds the cache key convention of spec §3/§6:
// "{tileset}/{z}/{x}/{y}.pbf".
func TilePath(tileset string, z, x, y int) string {
	return buildPath(tileset, z, x, y)
}

// Nocache short-circuits every operation: reads always miss, writes are
// silently discarded, nothing ever exists.
type Nocache struct{}

func (Nocache) Info() string    { return "nocache" }
func (Nocache) BaseURL() string { return "" }
func (Nocache) Read(context.Context, string, func(io.Reader) error) (bool, error) {
	return false, nil
}
func (Nocache) Write(context.Context, string, []byte) error  { return nil }
func (Nocache) Exists(context.Context, string) (bool, error) { return false, nil }
