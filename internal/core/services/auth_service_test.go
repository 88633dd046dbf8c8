package services

import (
	"context"
	"testing"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(ttl time.Duration) *AuthService {
	return NewAuthService(memory.NewMemoryUserRepository(), "test-secret", ttl)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(time.Hour)

	identity, token, err := svc.Register(ctx, "Alice@Example.com", "Alice", "https://example.com/a.png", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, identity.UID)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.NotEmpty(t, token)

	// Login is case-insensitive on email and never exposes the hash.
	loggedIn, token2, err := svc.Login(ctx, "ALICE@example.COM", "secret123")
	require.NoError(t, err)
	assert.Equal(t, identity.UID, loggedIn.UID)
	assert.NotEmpty(t, token2)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(time.Hour)

	_, _, err := svc.Register(ctx, "alice@example.com", "Alice", "", "secret123")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice@example.com", "Other", "", "different")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(time.Hour)

	_, _, err := svc.Register(ctx, "alice@example.com", "Alice", "", "secret123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newAuthService(time.Hour)

	// Unknown users and wrong passwords are indistinguishable to the caller.
	_, _, err := svc.Login(context.Background(), "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newAuthService(time.Hour)

	identity := domain.Identity{
		UID:         "user-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		PhotoURL:    "https://example.com/a.png",
	}
	token, err := svc.GenerateToken(identity)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, identity, claims.Identity())
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(time.Hour)

	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(memory.NewMemoryUserRepository(), "secret-a", time.Hour)
	verifier := NewAuthService(memory.NewMemoryUserRepository(), "secret-b", time.Hour)

	token, err := issuer.GenerateToken(domain.Identity{UID: "user-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthService(-time.Minute)

	token, err := svc.GenerateToken(domain.Identity{UID: "user-1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
