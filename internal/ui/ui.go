package ui

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

// Package ui holds the embedded HTML templates for the map viewer served
// at "/".
import (
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var funcMap = template.FuncMap{
	"join": func(sep string, items []string) string {
		out := ""
		for i, s := range items {
			if i > 0 {
				out += sep
			}
			out += s
		}
		return out
	},
}

// HTMLDynamicLoad disables template caching when true, so edits to the
// embedded .gohtml sources take effect without a rebuild. Set from
// --devel at startup; left false in production.
var HTMLDynamicLoad bool

var (
	cacheMu sync.Mutex
	cache   = map[string]*template.Template{}
)

// LoadTemplate parses an embedded viewer template by name, e.g. "index.gohtml".
// Parsed templates are cached unless HTMLDynamicLoad is set.
func LoadTemplate(name string) (*template.Template, error) {
	if !HTMLDynamicLoad {
		cacheMu.Lock()
		if tmpl, ok := cache[name]; ok {
			cacheMu.Unlock()
			return tmpl, nil
		}
		cacheMu.Unlock()
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("ui: parse %s: %w", name, err)
	}

	if !HTMLDynamicLoad {
		cacheMu.Lock()
		cache[name] = tmpl
		cacheMu.Unlock()
	}

	return tmpl, nil
}
