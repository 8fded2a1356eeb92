// Package middleware provides reusable HTTP middleware for the Visitor Logbook API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// ExportWarningHeader carries the mirror failure message on a mutation that
// was committed but could not be mirrored. It is exposed to browsers so the
// front-desk form can surface it.
const ExportWarningHeader = "X-Export-Warning"

// NewCORSHandler returns a middleware that applies CORS headers based on allowedOrigins.
// Each entry must be a full origin (scheme + host, no trailing slash); "*"
// allows any origin.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{ExportWarningHeader, "Content-Disposition"},
	})
	return c.Handler
}
