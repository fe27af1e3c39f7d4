package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fintrack-app/fintrack/internal/rbac"
	"github.com/fintrack-app/fintrack/internal/shared"
)

// TokenPair bundles the access and refresh tokens returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates a user account with the default role and issues tokens.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, TokenPair, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("auth: hash password: %w", err)
	}
	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
		Role:         rbac.DefaultRole(),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &user, pair, nil
}

// Login validates email/password credentials and issues tokens. Missing
// accounts, inactive accounts and bad passwords are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	pair, err := s.issuePair(ctx, *user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued against the user's current record, so a role change takes
// effect on the next access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	stored, err := s.repo.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	if stored.Revoked || stored.TokenHash != HashToken(refreshToken) || time.Now().UTC().After(stored.ExpiresAt) {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByID(ctx, stored.UserID)
	if err != nil {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, *user)
}

// Logout revokes the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return shared.ErrInvalidCredentials
	}
	return s.repo.RevokeRefreshToken(ctx, claims.ID)
}

// Profile returns the authoritative current record for a user.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) issuePair(ctx context.Context, user User) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, claims, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	record := RefreshToken{
		ID:        claims.ID,
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.StoreRefreshToken(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
