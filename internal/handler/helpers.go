// Package handler exposes the HTTP surface. Handlers talk to services
// and engines only, never to repositories.
package handler

import (
	"net/http"

	"inkwell/internal/httputil"
)

// pathID reads a path segment registered with the Go 1.22 mux patterns,
// responding 400 when it is empty.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if v == "" {
		httputil.RespondError(w, http.StatusBadRequest, name+" path parameter is required")
		return "", false
	}
	return v, true
}

// queryID reads a required query parameter, responding 400 when it is
// missing.
func queryID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		httputil.RespondError(w, http.StatusBadRequest, name+" query parameter is required")
		return "", false
	}
	return v, true
}
