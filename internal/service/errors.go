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
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/theckman/httpforwarded"
)

// appError carries an HTTP status alongside the wrapped error and the
// message shown to the client. Handlers return *appError instead of
// writing error responses directly, per spec.md §7's status code taxonomy.
type appError struct {
	Code    int
	Error   error
	Message string
}

func appErrorBadRequest(err error, message string) *appError {
	return &appError{Code: http.StatusBadRequest, Error: err, Message: message}
}

func appErrorNotFound(err error, message string) *appError {
	return &appError{Code: http.StatusNotFound, Error: err, Message: message}
}

func appErrorInternal(err error, message string) *appError {
	return &appError{Code: http.StatusInternalServerError, Error: err, Message: message}
}

func appErrorUnauthorized(err error, message string) *appError {
	return &appError{Code: http.StatusUnauthorized, Error: err, Message: message}
}

func appErrorForbidden(err error, message string) *appError {
	return &appError{Code: http.StatusForbidden, Error: err, Message: message}
}

// appErrorServiceUnavailable reports a connection-pool exhaustion or other
// transient unavailability (spec.md §7: "503 if the connection pool cannot
// be acquired within the timeout").
func appErrorServiceUnavailable(err error, message string) *appError {
	return &appError{Code: http.StatusServiceUnavailable, Error: err, Message: message}
}

// appHandler adapts a handler returning *appError into an http.Handler,
// centralising error logging and response writing.
type appHandler func(http.ResponseWriter, *http.Request) *appError

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e := fn(w, r)
	if e == nil {
		return
	}
	entry := log.WithFields(log.Fields{"path": r.URL.Path, "status": e.Code})
	if e.Error != nil {
		entry = entry.WithError(e.Error)
	}
	entry.Warn(e.Message)
	http.Error(w, e.Message, e.Code)
}

// writeJSON writes v as a JSON response with the given content type.
func writeJSON(w http.ResponseWriter, contentType string, v interface{}) *appError {
	w.Header().Set("Content-Type", contentType)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return appErrorInternal(err, "error encoding JSON response")
	}
	return nil
}

// serveURLBase builds "{scheme}://{host}/" for r, honouring a Forwarded
// header (RFC 7239) ahead of r.Host/r.TLS so the service resolves the
// correct public base URL behind a reverse proxy.
func serveURLBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if hdrs, ok := r.Header["Forwarded"]; ok {
		params := httpforwarded.Parse(hdrs)
		if protos := params[httpforwarded.ProtoParam]; len(protos) > 0 {
			scheme = protos[0]
		}
		if hosts := params[httpforwarded.HostParam]; len(hosts) > 0 {
			host = hosts[0]
		}
	}

	return fmt.Sprintf("%s://%s/", scheme, host)
}
