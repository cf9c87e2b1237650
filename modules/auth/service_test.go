package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/store"
)

func setupTestService(t *testing.T) *AuthService {
	t.Helper()
	db, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	svc, err := NewAuthService(store.NewRepository(db), NewPasswordHasher(4), newTestJWTManager(time.Hour))
	require.NoError(t, err)
	return svc
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  alice ", "password")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password", user.PasswordHash)

	token, err := svc.Login(ctx, "alice", "password")
	require.NoError(t, err)
	assert.Equal(t, "alice", token.Username)
	assert.EqualValues(t, 3600, token.ExpiresIn)

	claims, err := svc.ValidateToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Len(t, claims.SessionID, sessionIDLength)

	again, err := svc.Login(ctx, "alice", "password")
	require.NoError(t, err)
	againClaims, err := svc.ValidateToken(ctx, again.Token)
	require.NoError(t, err)
	assert.NotEqual(t, claims.SessionID, againClaims.SessionID, "each login opens a new session")

	fetched, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", fetched.Username)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "password"},
		{"blank username", "   ", "password"},
		{"empty password", "bob", ""},
		{"long username", strings.Repeat("u", maxUsernameLength+1), "password"},
		{"long password", "bob", strings.Repeat("p", maxPasswordBytes+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password)
			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "password")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "different")
	var ce *domain.ConflictError
	assert.ErrorAs(t, err, &ce)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "password")
	require.NoError(t, err)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"nobody", "password"},
	} {
		_, err := svc.Login(ctx, tc.user, tc.pass)
		var ae *domain.AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "Invalid credentials", ae.Message)
		assert.False(t, ae.Forbidden)
	}
}

func TestAuthService_ValidateToken_Failures(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.ValidateToken(ctx, "")
	var missing *domain.AuthError
	require.ErrorAs(t, err, &missing)
	assert.False(t, missing.Forbidden, "a missing token is unauthorized")

	_, err = svc.ValidateToken(ctx, "bogus")
	var invalid *domain.AuthError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, invalid.Forbidden, "an invalid token is forbidden")
}

func TestReplyError_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"validation", domain.NewValidationError("bad"), CodeValidation},
		{"conflict", &domain.ConflictError{Message: "taken"}, CodeConflict},
		{"unauthorized", &domain.AuthError{Message: "no token"}, CodeUnauthorized},
		{"forbidden", &domain.AuthError{Message: "bad token", Forbidden: true}, CodeForbidden},
		{"not found", domain.NewNotFoundError("gone"), CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, ok := replyErrorFrom(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.code, reply.Code)

			rebuilt := reply.Err()
			assert.IsType(t, tt.err, rebuilt)
			assert.Equal(t, tt.err.Error(), rebuilt.Error())
		})
	}

	_, ok := replyErrorFrom(assert.AnError)
	assert.False(t, ok, "untyped errors are transport errors")
	assert.NoError(t, ReplyError{}.Err())
}

func TestAuthModule_Handlers(t *testing.T) {
	db, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	m, err := NewModule(store.NewRepository(db), config.AuthConfig{
		JWTSecret: "secret", JWTIssuer: "test", TokenTTL: time.Hour, BcryptCost: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "auth", m.Name())
	assert.True(t, m.Health(context.Background()).Healthy)

	ctx := context.Background()
	reg, err := m.handleRegister(ctx, RegisterRequest{Username: "alice", Password: "pw"}, nil)
	require.NoError(t, err)
	assert.Empty(t, reg.Code)

	dup, err := m.handleRegister(ctx, RegisterRequest{Username: "alice", Password: "pw"}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeConflict, dup.Code)

	bad, err := m.handleLogin(ctx, LoginRequest{Username: "alice", Password: "nope"}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeUnauthorized, bad.Code)

	login, err := m.handleLogin(ctx, LoginRequest{Username: "alice", Password: "pw"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)

	valid, err := m.handleValidateToken(ctx, ValidateTokenRequest{Token: login.Token}, nil)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, valid.UserID)

	invalid, err := m.handleValidateToken(ctx, ValidateTokenRequest{Token: "nope"}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeForbidden, invalid.Code)

	missing, err := m.handleGetUser(ctx, GetUserRequest{UserID: 999}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, missing.Code)
}
