package auth

import (
	"net/http"
	"strings"

	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
)

// TokenVerifier validates a bearer token and returns the caller identity.
type TokenVerifier interface {
	VerifyToken(token string) (tenancy.Identity, error)
}

// RequireUser enforces a bearer JWT and stores the caller identity in the
// request context for downstream ownership checks.
func RequireUser(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			identity, err := verifier.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := tenancy.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route to the configured administrator account. It
// assumes RequireUser already ran and stored the identity.
func RequireAdmin(adminEmail string) func(http.Handler) http.Handler {
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := tenancy.IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if adminEmail == "" || !strings.EqualFold(identity.Email, adminEmail) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
