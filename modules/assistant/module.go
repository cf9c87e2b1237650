package assistant

import (
	"context"
	"log"

	"github.com/go-monolith/mono"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
)

// AssistantModule exposes the completion proxy.
type AssistantModule struct {
	assistant *Assistant
	model     string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*AssistantModule)(nil)
	_ mono.HealthCheckableModule = (*AssistantModule)(nil)
)

// NewModule creates a new AssistantModule.
func NewModule(cfg config.AssistantConfig) *AssistantModule {
	return &AssistantModule{
		assistant: New(cfg),
		model:     cfg.Model,
	}
}

// Name returns the module name.
func (m *AssistantModule) Name() string {
	return "assistant"
}

// Assistant returns the completion client.
func (m *AssistantModule) Assistant() *Assistant {
	return m.assistant
}

// Start starts the module.
func (m *AssistantModule) Start(_ context.Context) error {
	if !m.assistant.Configured() {
		log.Println("[assistant] OPENAI_API_KEY is not set; /api/chat will return upstream auth errors")
	}
	log.Printf("[assistant] Module started (model %s)", m.model)
	return nil
}

// Stop stops the module.
func (m *AssistantModule) Stop(_ context.Context) error {
	log.Println("[assistant] Module stopped")
	return nil
}

// Health reports the configured model. The upstream itself is not called.
func (m *AssistantModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"model":      m.model,
			"configured": m.assistant.Configured(),
		},
	}
}
