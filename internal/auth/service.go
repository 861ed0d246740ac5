package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/apothek-io/apothek/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *Issuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *Issuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Authenticate validates email/password credentials. Failures collapse
// into ErrInvalidCredentials so the response does not reveal whether
// the account exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, TokenPair, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuer.IssuePair(*account)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return account, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The old
// refresh token is revoked so it cannot be replayed; claims are
// rebuilt from the stored record so role or permission changes take
// effect on refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.Parse(ctx, refreshToken, TokenUseRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	account, err := s.accountFromClaims(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	if !account.IsActive {
		return TokenPair{}, shared.ErrInactiveAccount
	}
	if err := s.issuer.Revoke(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return s.issuer.IssuePair(*account)
}

// Logout revokes both tokens of a session. Parse failures are ignored
// for the refresh token: an already-expired token needs no revocation.
func (s *Service) Logout(ctx context.Context, accessClaims *Claims, refreshToken string) error {
	if err := s.issuer.Revoke(ctx, accessClaims); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	refreshClaims, err := s.issuer.Parse(ctx, refreshToken, TokenUseRefresh)
	if err != nil {
		return nil
	}
	return s.issuer.Revoke(ctx, refreshClaims)
}

// AssignmentsFor loads the account's active additional pharmacy
// assignments, for record-backed tenancy checks.
func (s *Service) AssignmentsFor(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.ActivePharmacyAssignments(ctx, userID)
}

func (s *Service) accountFromClaims(ctx context.Context, claims *Claims) (*Account, error) {
	return s.repo.FindByID(ctx, claims.Subject().UserID)
}
