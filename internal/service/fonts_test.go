package service

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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"github.com/vtileserver/vtileserver/internal/conf"
)

func withFontsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := conf.Configuration.Server.AssetsPath
	conf.Configuration.Server.AssetsPath = dir
	t.Cleanup(func() { conf.Configuration.Server.AssetsPath = prev })
	return dir
}

func TestHandleFontStacksServesFile(t *testing.T) {
	dir := withFontsDir(t)
	fontsDirPath := filepath.Join(dir, "fonts")
	if err := os.MkdirAll(fontsDirPath, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `["Open Sans Regular"]`
	if err := os.WriteFile(filepath.Join(fontsDirPath, "fontstacks.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/fontstacks.json", nil)
	rr := httptest.NewRecorder()
	appHandler(handleFontStacks).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != body {
		t.Fatalf("got body %q, want %q", rr.Body.String(), body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Fatalf("got Content-Type %q, want %q", ct, ContentTypeJSON)
	}
}

func TestHandleFontStacksMissingReturnsNotFound(t *testing.T) {
	withFontsDir(t)

	req := httptest.NewRequest("GET", "/fontstacks.json", nil)
	rr := httptest.NewRecorder()
	appHandler(handleFontStacks).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleFontRangeServesFile(t *testing.T) {
	dir := withFontsDir(t)
	stackDir := filepath.Join(dir, "fonts", "Open Sans Regular")
	if err := os.MkdirAll(stackDir, 0o755); err != nil {
		t.Fatal(err)
	}
	glyphs := []byte{0x0a, 0x01, 0x02}
	if err := os.WriteFile(filepath.Join(stackDir, "0-255.pbf"), glyphs, 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/fonts/Open Sans Regular/0-255.pbf", nil)
	req = mux.SetURLVars(req, map[string]string{"stack": "Open Sans Regular", "fontrange": "0-255"})
	rr := httptest.NewRecorder()
	appHandler(handleFontRange).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != string(glyphs) {
		t.Fatalf("got body %v, want %v", rr.Body.Bytes(), glyphs)
	}
}

func TestHandleFontRangeMissingReturnsNotFound(t *testing.T) {
	withFontsDir(t)

	req := httptest.NewRequest("GET", "/fonts/Unknown Stack/0-255.pbf", nil)
	req = mux.SetURLVars(req, map[string]string{"stack": "Unknown Stack", "fontrange": "0-255"})
	rr := httptest.NewRecorder()
	appHandler(handleFontRange).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}
