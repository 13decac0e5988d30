package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"

	// AdminKeyHeader carries the operator key for security endpoints
	AdminKeyHeader = "X-Admin-Key"
)

// AdminAuth guards operator endpoints with a static API key. With no key
// configured the endpoints are disabled outright rather than left open.
func AdminAuth(adminKey string, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeErrorResponse(w, errors.NewAuthenticationError("Admin access is not configured"), logger)
				return
			}

			provided := r.Header.Get(AdminKeyHeader)
			if provided == "" {
				writeErrorResponse(w, errors.NewAuthenticationError("Admin key is required"), logger)
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
				logger.WithField("path", r.URL.Path).Warn("Rejected admin request with bad key")
				writeErrorResponse(w, errors.NewAuthenticationError("Invalid admin key"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			// Add to context
			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			// Add to response header
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return uuid.NewString()
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithError(appErr).Warn("Request rejected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	timestamp := time.Now().UTC().Format(time.RFC3339)
	w.Write([]byte(`{"success":false,"error":{"type":"` + string(appErr.Type) + `","message":"` + appErr.Message + `","timestamp":"` + timestamp + `"}}`))
}
