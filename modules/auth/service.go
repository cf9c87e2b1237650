package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	nanoid "github.com/jaevor/go-nanoid"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

const (
	maxUsernameLength = 191
	maxPasswordBytes  = 72
	sessionIDLength   = 21

	msgInvalidCredentials = "Invalid credentials"
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, id uint) (*domain.User, error)
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users     UserStore
	hasher    *PasswordHasher
	jwt       *JWTManager
	sessionID func() string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher *PasswordHasher, jwt *JWTManager) (*AuthService, error) {
	gen, err := nanoid.Standard(sessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create session id generator: %w", err)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		jwt:       jwt,
		sessionID: gen,
	}, nil
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.NewValidationError("Username and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, domain.NewValidationError("Username is too long")
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.NewValidationError("Password must be at most 72 bytes")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a token bound to a fresh session id.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Token, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, &domain.AuthError{Message: msgInvalidCredentials}
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, &domain.AuthError{Message: msgInvalidCredentials}
	}

	token, err := s.jwt.Generate(user.ID, user.Username, s.sessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.Token{
		Token:     token,
		Username:  user.Username,
		ExpiresIn: s.jwt.TokenTTL(),
	}, nil
}

// ValidateToken verifies a bearer token. Failures are forbidden AuthErrors.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	if token == "" {
		return nil, &domain.AuthError{Message: "Authentication token is required"}
	}

	claims, err := s.jwt.Validate(token)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, ErrExpiredToken) {
			msg = "Token expired"
		}
		return nil, &domain.AuthError{Message: msg, Forbidden: true}
	}

	return &domain.Claims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
	}, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID uint) (*domain.User, error) {
	return s.users.FindUserByID(ctx, userID)
}
