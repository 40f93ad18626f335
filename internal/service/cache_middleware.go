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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vtileserver/vtileserver/internal/conf"
	"github.com/vtileserver/vtileserver/internal/mvt"
)

// responseCapturer buffers a downstream handler's response instead of
// forwarding it immediately, so tileCacheMiddleware can decide on gzip
// negotiation once the handler's status and body are known.
type responseCapturer struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
}

func newResponseCapturer() *responseCapturer {
	return &responseCapturer{header: make(http.Header)}
}

func (rc *responseCapturer) Header() http.Header { return rc.header }

func (rc *responseCapturer) Write(b []byte) (int, error) {
	if rc.statusCode == 0 {
		rc.statusCode = http.StatusOK
	}
	return rc.body.Write(b)
}

func (rc *responseCapturer) WriteHeader(code int) {
	rc.statusCode = code
}

// tileCacheMiddleware sits in front of handleTile. On a hit it serves the
// cached bytes directly; on a miss it lets the wrapped handler assemble the
// tile, starts an asynchronous cache write of the result and replies without
// waiting for that write. Tiles are always cached
// gzip-encoded (the convention internal/generator also follows); the
// client's Accept-Encoding decides whether the response is sent compressed
// or decoded (spec.md §6).
func (s *Service) tileCacheMiddleware(next appHandler) appHandler {
	return func(w http.ResponseWriter, r *http.Request) *appError {
		if s == nil || s.cache == nil || !s.cache.Enabled() {
			return next(w, r)
		}

		ts, x, y, z, outOfRange, appErr := parseTileVars(r)
		if appErr != nil || outOfRange || !ts.IsCachableAt(z) {
			return next(w, r)
		}

		path := tileCachePath(ts, x, y, z)
		acceptsGzip := strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
		maxAge := conf.Configuration.Cache.BrowserCacheMaxAge

		var hit bytes.Buffer
		found, err := s.cache.Read(r.Context(), path, func(src io.Reader) error {
			_, copyErr := io.Copy(&hit, src)
			return copyErr
		})
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("service: cache read failed, assembling instead")
		}

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))

		if err == nil && found {
			w.Header().Set("X-Cache", "HIT")
			if hit.Len() == 0 {
				w.WriteHeader(http.StatusNoContent)
				return nil
			}
			return writeTileResponse(w, hit.Bytes(), acceptsGzip)
		}

		w.Header().Set("X-Cache", "MISS")

		capture := newResponseCapturer()
		if appErr := next(capture, r); appErr != nil {
			return appErr
		}

		for k, vv := range capture.header {
			if k == "Content-Type" || k == "Access-Control-Allow-Origin" || k == "Cache-Control" {
				continue
			}
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}

		switch capture.statusCode {
		case http.StatusNoContent, 0:
			// Empty tiles never reach the cache (spec.md §8): a zero-layer
			// tile at this path must stay a miss so a later write with real
			// data is never shadowed by a stale empty entry.
			w.WriteHeader(http.StatusNoContent)
			return nil
		case http.StatusOK:
			raw := capture.body.Bytes()
			gzipped, gerr := mvt.GzipEncode(raw)
			if gerr != nil {
				log.WithError(gerr).WithField("path", path).Warn("service: gzip encode failed, serving uncached")
				w.Header().Set("Content-Type", ContentTypeMVT)
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.WriteHeader(http.StatusOK)
				if _, werr := w.Write(raw); werr != nil {
					return appErrorInternal(werr, "error writing tile data")
				}
				return nil
			}
			go cacheWriteAsync(s, path, gzipped)
			return writeTileResponse(w, gzipped, acceptsGzip)
		default:
			w.WriteHeader(capture.statusCode)
			if _, werr := w.Write(capture.body.Bytes()); werr != nil {
				return appErrorInternal(werr, "error writing response")
			}
			return nil
		}
	}
}

// writeTileResponse writes gzip-encoded tile bytes to w, honoring the
// client's Accept-Encoding: gzip negotiation by decoding when absent.
func writeTileResponse(w http.ResponseWriter, gzipped []byte, acceptsGzip bool) *appError {
	w.Header().Set("Content-Type", ContentTypeMVT)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if acceptsGzip {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(gzipped); err != nil {
			return appErrorInternal(err, "error writing tile data")
		}
		return nil
	}
	raw, err := mvt.GzipDecode(gzipped)
	if err != nil {
		return appErrorInternal(err, "error decompressing cached tile")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		return appErrorInternal(err, "error writing tile data")
	}
	return nil
}

func cacheWriteAsync(s *Service, path string, data []byte) {
	if err := s.cache.Write(context.Background(), path, data); err != nil {
		log.WithError(err).WithField("path", path).Warn("service: cache write failed")
	}
}
