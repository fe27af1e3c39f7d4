package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fintrack-app/fintrack/internal/rbac"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Claims are the JWT claims carried by both token kinds.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens. Its Verify method satisfies
// rbac.Verifier, making it the credential verifier behind the guard chain.
type TokenManager struct {
	secret     []byte
	issuer     string
	hierarchy  rbac.Hierarchy
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret, issuer string, hierarchy rbac.Hierarchy, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be greater than zero")
	}
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		hierarchy:  hierarchy,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccessToken signs a short-lived access token for the user.
func (m *TokenManager) IssueAccessToken(user User) (string, error) {
	return m.sign(user, tokenUseAccess, m.accessTTL)
}

// IssueRefreshToken signs a refresh token and returns its claims so the
// caller can persist the token id and expiry.
func (m *TokenManager) IssueRefreshToken(user User) (string, Claims, error) {
	signed, err := m.sign(user, tokenUseRefresh, m.refreshTTL)
	if err != nil {
		return "", Claims{}, err
	}
	claims, err := m.parse(signed, tokenUseRefresh)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify validates an access token and maps it to a verified identity.
// Any failure, including a role claim outside the hierarchy, yields
// rbac.ErrInvalidCredential.
func (m *TokenManager) Verify(ctx context.Context, token string) (rbac.Identity, error) {
	claims, err := m.parse(token, tokenUseAccess)
	if err != nil {
		return rbac.Identity{}, fmt.Errorf("%w: %v", rbac.ErrInvalidCredential, err)
	}
	role, err := m.hierarchy.Parse(claims.Role)
	if err != nil {
		return rbac.Identity{}, fmt.Errorf("%w: %v", rbac.ErrInvalidCredential, err)
	}
	return rbac.Identity{SubjectID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (m *TokenManager) VerifyRefresh(token string) (Claims, error) {
	return m.parse(token, tokenUseRefresh)
}

// RefreshTTL returns the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) sign(user User, use string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email:    user.Email,
		Role:     string(user.Role),
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token, wantUse string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, errors.New("subject missing")
	}
	if claims.TokenUse != wantUse {
		return Claims{}, fmt.Errorf("token use mismatch: %s", claims.TokenUse)
	}
	return *claims, nil
}

// HashToken derives the storable digest of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var _ rbac.Verifier = (*TokenManager)(nil)
