// Package httpapi provides the HTTP façade: a small set of handlers
// wrapping service.GatewayService.Validate, a drain-aware readiness probe,
// and a Prometheus scrape endpoint. The façade is deliberately thin; every
// decision it makes belongs to the domain packages it calls.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentinelguard/actiongate/internal/ctxkey"
)

// LoggerKey is the context key for the request-scoped logger, shared with
// any other inbound adapter via ctxkey to avoid import cycles.
var LoggerKey = ctxkey.LoggerKey{}

type requestIDKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDKey{}

// RequestIDMiddleware assigns each request a correlation ID, generating
// one when the caller did not supply X-Request-ID, and enriches the
// request-scoped logger with it.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, logger.With("request_id", requestID))
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the request-scoped logger, falling back to
// slog.Default() when none was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
