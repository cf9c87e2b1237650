package chat

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/sungchulkim/sung-kim-capstone-server/modules/store"
)

// ChatModule exposes the ChatService to the application.
type ChatModule struct {
	service *ChatService
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*ChatModule)(nil)
	_ mono.HealthCheckableModule = (*ChatModule)(nil)
)

// NewModule creates a new ChatModule.
func NewModule(repo *store.Repository, publisher Publisher, logger types.Logger) *ChatModule {
	return &ChatModule{
		service: NewChatService(repo, publisher, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *ChatModule) Name() string {
	return "chat"
}

// Service returns the chat service.
func (m *ChatModule) Service() *ChatService {
	return m.service
}

// Start starts the module.
func (m *ChatModule) Start(_ context.Context) error {
	m.logger.Info("Chat module started")
	return nil
}

// Stop stops the module.
func (m *ChatModule) Stop(_ context.Context) error {
	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports whether the message store is reachable.
func (m *ChatModule) Health(ctx context.Context) mono.HealthStatus {
	if err := m.service.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store unavailable",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}
