// Package identity extracts the gateway-forwarded caller identity.
//
// The matching service sits behind the API gateway, which authenticates the
// caller and forwards their id in the X-User-Id header. This middleware
// parses that header plus the gateway request id into the context; handlers
// that require a caller check for a non-nil user id themselves.
package identity

import (
	"net/http"

	id "lifelink/pkg/domain"
	"lifelink/pkg/requestcontext"
)

const (
	// HeaderUserID carries the authenticated caller's id, set by the gateway.
	HeaderUserID = "X-User-Id"
	// HeaderRequestID carries the gateway-assigned request id.
	HeaderRequestID = "X-Request-Id"
)

// FromHeaders reads the gateway identity headers into the request context.
// An absent or malformed user id leaves the context without one; handlers
// reject such requests per-route.
func FromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := r.Header.Get(HeaderUserID); raw != "" {
			if userID, err := id.ParseUserID(raw); err == nil {
				ctx = requestcontext.WithUserID(ctx, userID)
			}
		}
		if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
