package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

// AuthPort defines the authentication operations other modules rely on.
type AuthPort interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.Token, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID uint) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// Compile-time interface checks.
var _ AuthPort = (*AuthAdapter)(nil)
var _ AuthPort = (*AuthService)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{container: container}
}

// Register creates an account through the register service.
func (a *AuthAdapter) Register(ctx context.Context, username, password string) (*domain.User, error) {
	req := RegisterRequest{Username: username, Password: password}
	var resp RegisterResponse
	if err := call(ctx, a.container, ServiceRegister, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &domain.User{ID: resp.ID, Username: resp.Username, CreatedAt: resp.CreatedAt}, nil
}

// Login exchanges credentials for a token through the login service.
func (a *AuthAdapter) Login(ctx context.Context, username, password string) (*domain.Token, error) {
	req := LoginRequest{Username: username, Password: password}
	var resp LoginResponse
	if err := call(ctx, a.container, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &domain.Token{Token: resp.Token, Username: resp.Username, ExpiresIn: resp.ExpiresIn}, nil
}

// ValidateToken validates a bearer token and returns its claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(ctx, a.container, ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &domain.Claims{UserID: resp.UserID, Username: resp.Username, SessionID: resp.SessionID}, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID uint) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := call(ctx, a.container, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &domain.User{ID: resp.ID, Username: resp.Username, CreatedAt: resp.CreatedAt}, nil
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// Err rebuilds the typed error carried by a reply, or nil.
func (e ReplyError) Err() error {
	switch e.Code {
	case "":
		return nil
	case CodeValidation:
		return &domain.ValidationError{Message: e.Message}
	case CodeConflict:
		return &domain.ConflictError{Message: e.Message}
	case CodeUnauthorized:
		return &domain.AuthError{Message: e.Message}
	case CodeForbidden:
		return &domain.AuthError{Message: e.Message, Forbidden: true}
	case CodeNotFound:
		return &domain.NotFoundError{Message: e.Message}
	default:
		return fmt.Errorf("auth reply error %s: %s", e.Code, e.Message)
	}
}

// replyErrorFrom converts a typed error into a reply payload. ok is false for
// errors outside the taxonomy, which should travel as transport errors.
func replyErrorFrom(err error) (ReplyError, bool) {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		ae *domain.AuthError
		nf *domain.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return ReplyError{Code: CodeValidation, Message: ve.Message}, true
	case errors.As(err, &ce):
		return ReplyError{Code: CodeConflict, Message: ce.Message}, true
	case errors.As(err, &ae):
		code := CodeUnauthorized
		if ae.Forbidden {
			code = CodeForbidden
		}
		return ReplyError{Code: code, Message: ae.Message}, true
	case errors.As(err, &nf):
		return ReplyError{Code: CodeNotFound, Message: nf.Message}, true
	default:
		return ReplyError{}, false
	}
}
