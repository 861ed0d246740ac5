package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
)

func TestAuthenticatorMiddleware(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)
	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)

	var principal authz.Principal
	handler := Authenticator{Issuer: issuer}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = authz.PrincipalFromContext(r.Context())
	}))

	cases := []struct {
		name          string
		authorization string
		wantPrincipal bool
	}{
		{"valid bearer token", "Bearer " + pair.AccessToken, true},
		{"no header", "", false},
		{"malformed header", "Token " + pair.AccessToken, false},
		{"garbage token", "Bearer garbage", false},
		{"refresh token on access path", "Bearer " + pair.RefreshToken, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			principal = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !tc.wantPrincipal {
				require.Nil(t, principal)
				return
			}
			require.NotNil(t, principal)
			require.Equal(t, authz.RolePharmacist, principal.Role())
			require.EqualValues(t, 42, authz.PrincipalID(principal))
		})
	}
}
