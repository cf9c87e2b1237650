package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
)

// AuthModule provides authentication services.
type AuthModule struct {
	service *AuthService
	cfg     config.AuthConfig
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule backed by the given user store.
func NewModule(users UserStore, cfg config.AuthConfig) (*AuthModule, error) {
	jwtManager := NewJWTManager(JWTConfig{
		SecretKey: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Issuer:    cfg.JWTIssuer,
	})
	service, err := NewAuthService(users, NewPasswordHasher(cfg.BcryptCost), jwtManager)
	if err != nil {
		return nil, err
	}
	return &AuthModule{
		service: service,
		cfg:     cfg,
	}, nil
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Service exposes the in-process service.
func (m *AuthModule) Service() *AuthService {
	return m.service
}

// Start starts the module.
func (m *AuthModule) Start(_ context.Context) error {
	log.Printf("[auth] Module started (issuer: %s, token ttl: %s)", m.cfg.JWTIssuer, m.cfg.TokenTTL)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.service != nil,
		Message: "operational",
		Details: map[string]any{
			"issuer": m.cfg.JWTIssuer,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceRegister,
		json.Unmarshal,
		json.Marshal,
		m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegister, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceLogin,
		json.Unmarshal,
		json.Marshal,
		m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceValidateToken,
		json.Unmarshal,
		json.Marshal,
		m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetUser,
		json.Unmarshal,
		json.Marshal,
		m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	log.Printf("[auth] Registered services: %s, %s, %s, %s",
		ServiceRegister, ServiceLogin, ServiceValidateToken, ServiceGetUser)
	return nil
}

// Domain failures travel inside the reply; only unexpected errors are
// returned as transport errors.

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, err := m.service.Register(ctx, req.Username, req.Password)
	if err != nil {
		if reply, ok := replyErrorFrom(err); ok {
			return RegisterResponse{ReplyError: reply}, nil
		}
		return RegisterResponse{}, err
	}
	return RegisterResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	token, err := m.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		if reply, ok := replyErrorFrom(err); ok {
			return LoginResponse{ReplyError: reply}, nil
		}
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:     token.Token,
		Username:  token.Username,
		ExpiresIn: token.ExpiresIn,
	}, nil
}

func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		if reply, ok := replyErrorFrom(err); ok {
			return ValidateTokenResponse{ReplyError: reply}, nil
		}
		return ValidateTokenResponse{}, err
	}
	return ValidateTokenResponse{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		if reply, ok := replyErrorFrom(err); ok {
			return GetUserResponse{ReplyError: reply}, nil
		}
		return GetUserResponse{}, err
	}
	return GetUserResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}, nil
}
