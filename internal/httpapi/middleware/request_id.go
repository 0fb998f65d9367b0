// Package middleware provides the chi middleware chain for the demo HTTP
// surface: request ID injection and structured request logging.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestID injects a request ID into each request's context. It wraps
// chi's built-in middleware for compatibility with GetReqID.
func RequestID() func(next http.Handler) http.Handler {
	return middleware.RequestID
}
