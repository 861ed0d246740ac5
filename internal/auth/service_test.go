package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/shared"
)

type memoryAuthRepo struct {
	accounts    map[int64]*Account
	assignments map[int64][]int64
}

func newMemoryAuthRepo(accounts ...*Account) *memoryAuthRepo {
	repo := &memoryAuthRepo{
		accounts:    make(map[int64]*Account),
		assignments: make(map[int64][]int64),
	}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *memoryAuthRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryAuthRepo) FindByID(ctx context.Context, id int64) (*Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryAuthRepo) ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error) {
	return r.assignments[userID], nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestService(t *testing.T, accounts ...*Account) (*Service, *memoryAuthRepo, *Issuer) {
	t.Helper()
	repo := newMemoryAuthRepo(accounts...)
	issuer := NewIssuer("secret", 15*time.Minute, 24*time.Hour, NewRevocationStore(testRedis(t)))
	return NewService(repo, issuer), repo, issuer
}

func TestAuthenticate(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	svc, _, _ := newTestService(t, &account)
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, account.Email, "correct horse")
	require.NoError(t, err)
	require.EqualValues(t, account.ID, got.ID)

	_, err = svc.Authenticate(ctx, account.Email, "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Unknown accounts collapse into the same error.
	_, err = svc.Authenticate(ctx, "nobody@centralpharma.test", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	account.IsActive = false
	svc, _, _ := newTestService(t, &account)

	_, err := svc.Authenticate(context.Background(), account.Email, "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginIssuesUsablePair(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	svc, _, issuer := newTestService(t, &account)
	ctx := context.Background()

	got, pair, err := svc.Login(ctx, account.Email, "correct horse")
	require.NoError(t, err)
	require.EqualValues(t, account.ID, got.ID)

	claims, err := issuer.Parse(ctx, pair.AccessToken, TokenUseAccess)
	require.NoError(t, err)
	require.Equal(t, string(account.Role), claims.Role)
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	svc, repo, issuer := newTestService(t, &account)
	ctx := context.Background()

	_, pair, err := svc.Login(ctx, account.Email, "correct horse")
	require.NoError(t, err)

	// A role change between login and refresh lands in the new token.
	repo.accounts[account.ID].Role = authz.RoleAdmin

	fresh, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := issuer.Parse(ctx, fresh.AccessToken, TokenUseAccess)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleAdmin), claims.Role)

	// The consumed refresh token cannot be replayed.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshRejectsDeactivatedAccount(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	svc, repo, _ := newTestService(t, &account)
	ctx := context.Background()

	_, pair, err := svc.Login(ctx, account.Email, "correct horse")
	require.NoError(t, err)

	repo.accounts[account.ID].IsActive = false
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, shared.ErrInactiveAccount)
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	account := testAccount()
	account.PasswordHash = hashPassword(t, "correct horse")
	svc, _, issuer := newTestService(t, &account)
	ctx := context.Background()

	_, pair, err := svc.Login(ctx, account.Email, "correct horse")
	require.NoError(t, err)

	accessClaims, err := issuer.Parse(ctx, pair.AccessToken, TokenUseAccess)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, accessClaims, pair.RefreshToken))

	_, err = issuer.Parse(ctx, pair.AccessToken, TokenUseAccess)
	require.ErrorIs(t, err, ErrTokenRevoked)
	_, err = issuer.Parse(ctx, pair.RefreshToken, TokenUseRefresh)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Logging out again with a dead refresh token is not an error.
	require.NoError(t, svc.Logout(ctx, accessClaims, pair.RefreshToken))
}
