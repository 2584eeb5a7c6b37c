package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User represents a login account
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name,omitempty"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsSuperuser  bool       `json:"is_superuser"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// CreateUserRequest holds the fields needed to register a user
type CreateUserRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken string    `json:"access"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

var (
	// ErrUserNotFound is returned by stores when no user matches
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the email is already registered
	ErrUserExists = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// inactive accounts alike
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	// ErrInvalidToken is returned for malformed, expired or forged tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)
