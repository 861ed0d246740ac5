package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/apothek-io/apothek/internal/authz"
)

// Token use values embedded in claims.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed, mis-signed and expired tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenRevoked indicates a token that was valid but has been
	// revoked by logout.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// Claims is the signed token payload. Together with RegisteredClaims
// it is the "token principal" representation: a strict subset of the
// stored record (no additional pharmacy assignments).
type Claims struct {
	Role        string   `json:"role"`
	PharmacyID  int64    `json:"pharmacy_id,omitempty"`
	BranchID    int64    `json:"branch_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	IsManager   bool     `json:"is_manager,omitempty"`
	TokenID     string   `json:"token_id"`
	TokenUse    string   `json:"token_use"`
	jwt.RegisteredClaims
}

// Subject builds a token-backed principal from the claims. The
// assignment list is deliberately absent; tenancy checks through this
// principal are strictly more restrictive than against the record.
func (c Claims) Subject() authz.Subject {
	userID, _ := strconv.ParseInt(c.RegisteredClaims.Subject, 10, 64)
	perms := make([]authz.Permission, len(c.Permissions))
	for i, p := range c.Permissions {
		perms[i] = authz.Permission(p)
	}
	return authz.Subject{
		UserID:      userID,
		UserRole:    authz.Role(c.Role),
		Permissions: perms,
		IsManager:   c.IsManager,
		Pharmacy:    c.PharmacyID,
		Branch:      c.BranchID,
	}
}

// RevocationStore tracks revoked token IDs in Redis until their
// natural expiry.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore constructs a RevocationStore.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks the token ID revoked for ttl.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether the token ID has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, s.key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RevocationStore) key(tokenID string) string {
	return "revoked:" + tokenID
}

// Issuer signs and verifies tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revocation *RevocationStore
	now        func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, revocation *RevocationStore) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revocation: revocation,
		now:        time.Now,
	}
}

// IssuePair signs an access and a refresh token for the account.
func (i *Issuer) IssuePair(account Account) (TokenPair, error) {
	now := i.now()
	access, accessExp, err := i.sign(account, TokenUseAccess, now, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(account, TokenUseRefresh, now, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(account Account, use string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	perms := make([]string, len(account.Permissions))
	for idx, p := range account.Permissions {
		perms[idx] = string(p)
	}
	claims := Claims{
		Role:        string(account.Role),
		PharmacyID:  account.PharmacyID,
		BranchID:    account.BranchID,
		Permissions: perms,
		IsManager:   account.IsManager,
		TokenID:     uuid.NewString(),
		TokenUse:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature, expiry, expected use and revocation
// state of a token and returns its claims.
func (i *Issuer) Parse(ctx context.Context, raw, expectedUse string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenUse != expectedUse || claims.TokenID == "" {
		return nil, ErrTokenInvalid
	}
	if i.revocation != nil {
		revoked, err := i.revocation.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, fmt.Errorf("auth: revocation check: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates a parsed token for the rest of its lifetime.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.revocation == nil || claims == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return i.revocation.Revoke(ctx, claims.TokenID, ttl)
}
