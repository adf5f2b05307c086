package middleware

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/onnwee/quorumgate/internal/auth"
)

// capabilitiesKey is the context key for the token's capability list.
type capabilitiesKey struct{}

// SetCapabilities stores the token capabilities in the context.
func SetCapabilities(ctx context.Context, capabilities []string) context.Context {
	return context.WithValue(ctx, capabilitiesKey{}, capabilities)
}

// GetCapabilities retrieves the token capabilities from context.
func GetCapabilities(ctx context.Context) []string {
	if caps, ok := ctx.Value(capabilitiesKey{}).([]string); ok {
		return caps
	}
	return nil
}

// HasCapability reports whether the context carries the capability.
func HasCapability(ctx context.Context, capability string) bool {
	for _, got := range GetCapabilities(ctx) {
		if got == capability {
			return true
		}
	}
	return false
}

// writeAuthError writes a minimal JSON error without importing the api
// package, which sits above the middleware layer.
func writeAuthError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(ctx, code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}

// Authenticate validates the Bearer token and stores the actor identity and
// capabilities in the request context. Requests without a valid token are
// rejected with 401.
func Authenticate(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r.Context(), http.StatusUnauthorized, "auth_failed", "Missing bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r.Context(), http.StatusUnauthorized, "auth_failed", "Invalid or expired token")
				return
			}

			ctx := SetActor(r.Context(), claims.Subject)
			ctx = SetCapabilities(ctx, claims.Capabilities)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability rejects requests whose token lacks the capability.
// Must be placed after Authenticate.
func RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasCapability(r.Context(), capability) {
				writeAuthError(w, r.Context(), http.StatusForbidden, "forbidden", "Token lacks the "+capability+" capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
