package auth

import (
	"net/http"
	"strings"

	"github.com/apothek-io/apothek/internal/authz"
)

type claimsContextKey struct{}

// Authenticator turns a Bearer token into a principal on the request
// context. Routes behind it still decide authorization themselves; an
// absent or invalid token simply leaves the context without a
// principal so the authz guards answer 401.
type Authenticator struct {
	Issuer *Issuer
}

// Middleware parses the Authorization header when present.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.Issuer.Parse(r.Context(), raw, TokenUseAccess)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := authz.ContextWithPrincipal(r.Context(), claims.Subject())
		ctx = contextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
