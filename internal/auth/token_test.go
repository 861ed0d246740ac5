package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testAccount() Account {
	return Account{
		ID:          42,
		Email:       "amina@centralpharma.test",
		Role:        authz.RolePharmacist,
		Permissions: []authz.Permission{authz.PermDeleteDrug},
		IsManager:   true,
		PharmacyID:  3,
		BranchID:    7,
		IsActive:    true,
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)

	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := issuer.Parse(context.Background(), pair.AccessToken, TokenUseAccess)
	require.NoError(t, err)

	subject := claims.Subject()
	require.EqualValues(t, 42, subject.UserID)
	require.Equal(t, authz.RolePharmacist, subject.UserRole)
	require.Equal(t, []authz.Permission{authz.PermDeleteDrug}, subject.Permissions)
	require.True(t, subject.IsManager)
	require.EqualValues(t, 3, subject.Pharmacy)
	require.EqualValues(t, 7, subject.Branch)
	// Tokens never carry the assignment list.
	require.Nil(t, subject.Assignments)
}

func TestParseRejectsWrongUse(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)
	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)

	_, err = issuer.Parse(context.Background(), pair.RefreshToken, TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.Parse(context.Background(), pair.AccessToken, TokenUseRefresh)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)
	other := NewIssuer("different", 15*time.Minute, 24*time.Hour, nil)

	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)

	_, err = other.Parse(context.Background(), pair.AccessToken, TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.Parse(context.Background(), "not-a-token", TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)
	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = issuer.Parse(context.Background(), pair.AccessToken, TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// The refresh token outlives the access token.
	_, err = issuer.Parse(context.Background(), pair.RefreshToken, TokenUseRefresh)
	require.NoError(t, err)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	store := NewRevocationStore(testRedis(t))
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, store)
	ctx := context.Background()

	pair, err := issuer.IssuePair(testAccount())
	require.NoError(t, err)

	claims, err := issuer.Parse(ctx, pair.AccessToken, TokenUseAccess)
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, claims))

	_, err = issuer.Parse(ctx, pair.AccessToken, TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// The sibling refresh token has its own ID and stays valid.
	_, err = issuer.Parse(ctx, pair.RefreshToken, TokenUseRefresh)
	require.NoError(t, err)
}

func TestRecordAndTokenPrincipalsAgree(t *testing.T) {
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, nil)
	account := testAccount()

	pair, err := issuer.IssuePair(account)
	require.NoError(t, err)
	claims, err := issuer.Parse(context.Background(), pair.AccessToken, TokenUseAccess)
	require.NoError(t, err)

	record := account.Subject(nil)
	token := claims.Subject()
	for _, perm := range authz.All() {
		require.Equalf(t,
			authz.HasPermission(record, perm),
			authz.HasPermission(token, perm),
			"record and token disagree on %s", perm)
	}
}

func TestRevocationStoreIgnoresNonPositiveTTL(t *testing.T) {
	store := NewRevocationStore(testRedis(t))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "expired-token", -time.Minute))
	revoked, err := store.IsRevoked(ctx, "expired-token")
	require.NoError(t, err)
	require.False(t, revoked)
}
