// Package httpserver constructs the API server. Per-route deadlines live in
// the handler middleware; only connection-level timeouts are set here.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the server for the given listen address and root handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
