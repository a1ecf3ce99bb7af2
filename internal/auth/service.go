package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/veresiye/defter/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	tokens    *TokenIssuer
	validator *shared.Validator
	cost      int
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		validator: shared.NewValidator(),
		cost:      bcrypt.DefaultCost,
	}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and issues tokens. Only staff may log in.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return LoginResult{}, err
	}
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.IsStaff {
		return LoginResult{}, shared.ErrNotStaff
	}
	pair, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{TokenPair: pair, User: user.view()}, nil
}

// Refresh exchanges a refresh token for a new pair. The user must still be
// an active staff member.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return TokenPair{}, err
	}
	claims, err := s.tokens.Parse(req.Refresh, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.activeStaff(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Issue(user)
}

// ActorFromToken resolves a bearer access token to the acting admin.
func (s *Service) ActorFromToken(ctx context.Context, raw string) (shared.Actor, error) {
	claims, err := s.tokens.Parse(raw, TokenAccess)
	if err != nil {
		return shared.Actor{}, err
	}
	user, err := s.activeStaff(ctx, claims)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{ID: user.ID, Username: user.Username}, nil
}

func (s *Service) activeStaff(ctx context.Context, claims *Claims) (User, error) {
	id, err := claims.UserID()
	if err != nil {
		return User{}, ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, ErrInvalidToken
	}
	if !user.IsStaff {
		return User{}, shared.ErrNotStaff
	}
	return user, nil
}

// CreateAdmin stores a new active staff user with a bcrypt password hash.
func (s *Service) CreateAdmin(ctx context.Context, in NewAdmin) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = shared.TrimPtr(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsStaff:      true,
		IsActive:     true,
	})
}
