package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/validation"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[uuid.UUID]*User)}
}

func (m *memoryStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(user.Email) {
			return ErrUserExists
		}
	}
	user.ID = uuid.New()
	user.Email = strings.ToLower(user.Email)
	user.DateJoined = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryStore) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func newTestService() (*Service, *memoryStore) {
	store := newMemoryStore()
	return NewService(store, NewTokenManager(testSecret, "agronomy", time.Hour)), store
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, CreateUserRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	result, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, result.User.LastLoginAt)

	authed, err := svc.Authenticate(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, CreateUserRequest{Email: "not-an-email", Password: "short"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrValidationFailed))
	assert.Len(t, validation.Fields(err), 2)

	_, err = svc.Register(ctx, CreateUserRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, CreateUserRequest{Email: "ada@example.com", Password: "correct horse"})
	assert.True(t, errors.Is(err, validation.ErrValidationFailed))
}

func TestService_LoginFailures(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, CreateUserRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	store.users[user.ID].IsActive = false
	_, err = svc.Login(ctx, "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_AuthenticateInactiveUser(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, CreateUserRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	store.users[result.User.ID].IsActive = false
	_, err = svc.Authenticate(ctx, result.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	delete(store.users, result.User.ID)
	_, err = svc.Authenticate(ctx, result.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
