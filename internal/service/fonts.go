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
	"fmt"
	"os"
	"path/filepath"

	"net/http"

	"github.com/gorilla/mux"

	"github.com/vtileserver/vtileserver/internal/conf"
)

// fontsDir is the on-disk location of pre-built glyph PBFs, rooted at the
// configured assets path (spec.md's "static asset serving" is out of scope
// for the build pipeline, but the serving path itself is wired).
func fontsDir() string {
	return filepath.Join(conf.Configuration.Server.AssetsPath, "fonts")
}

// handleFontStacks serves the list of available font stacks as a static
// JSON document maintained alongside the glyph PBFs.
func handleFontStacks(w http.ResponseWriter, r *http.Request) *appError {
	path := filepath.Join(fontsDir(), "fontstacks.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return appErrorNotFound(err, "no font stacks configured")
	}
	if err != nil {
		return appErrorInternal(err, "error reading font stacks")
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	if _, werr := w.Write(data); werr != nil {
		return appErrorInternal(werr, "error writing font stacks")
	}
	return nil
}

// handleFontRange serves one pre-built glyph PBF covering a 256-codepoint
// range for a font stack, e.g. /fonts/Open Sans Regular/0-255.pbf.
func handleFontRange(w http.ResponseWriter, r *http.Request) *appError {
	vars := mux.Vars(r)
	stack := vars["stack"]
	fontRange := vars["fontrange"]

	path := filepath.Join(fontsDir(), stack, fontRange+".pbf")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return appErrorNotFound(err, fmt.Sprintf("no glyphs for %s/%s", stack, fontRange))
	}
	if err != nil {
		return appErrorInternal(err, "error reading glyph range")
	}
	w.Header().Set("Content-Type", ContentTypeMVT)
	if _, werr := w.Write(data); werr != nil {
		return appErrorInternal(werr, "error writing glyph range")
	}
	return nil
}
