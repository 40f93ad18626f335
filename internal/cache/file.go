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

package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Filecache roots tile storage at a base directory on the local filesystem.
type Filecache struct {
	Base    string
	baseURL string
}

// NewFilecache creates a filesystem-backed cache rooted at base.
func NewFilecache(base, baseURL string) *Filecache {
	return &Filecache{Base: base, baseURL: baseURL}
}

func (f *Filecache) Info() string    { return fmt.Sprintf("filecache(%s)", f.Base) }
func (f *Filecache) BaseURL() string { return f.baseURL }

func (f *Filecache) fullPath(path string) string {
	return filepath.Join(f.Base, filepath.FromSlash(path))
}

func (f *Filecache) Read(_ context.Context, path string, sink func(io.Reader) error) (bool, error) {
	file, err := os.Open(f.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache: read %q: %w", path, err)
	}
	defer file.Close()
	if err := sink(file); err != nil {
		return true, fmt.Errorf("cache: consume %q: %w", path, err)
	}
	return true, nil
}

// Write creates any missing parent directories, then writes via a temp
// file plus atomic rename rather than writing the final path directly — the
// source implementation writes in place and can interleave bytes from
// concurrent writers of the same tile (spec §9 open question); this
// implementation closes that hazard.
func (f *Filecache) Write(_ context.Context, path string, data []byte) error {
	full := f.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir for %q: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file for %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp file for %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("cache: rename into place %q: %w", path, err)
	}
	return nil
}

func (f *Filecache) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(f.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("cache: stat %q: %w", path, err)
}
