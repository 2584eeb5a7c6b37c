package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// Service handles registration, login and token authentication
type Service struct {
	store  Store
	tokens *TokenManager
	now    func() time.Time
}

// NewService creates an auth service
func NewService(store Store, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens, now: time.Now}
}

// Register creates an active user with a hashed password
func (s *Service) Register(ctx context.Context, req CreateUserRequest) (*User, error) {
	var errs validation.Errors
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errs.Add("email", "enter a valid email address")
	}
	if len(req.Password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  req.IsSuperuser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, validation.New("email", ErrUserExists.Error())
		}
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues an access token
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate verifies a bearer token and returns its active user
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// GetUserByEmail loads a user by email
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.store.GetUserByEmail(ctx, email)
}
