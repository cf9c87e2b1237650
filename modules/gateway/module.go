package gateway

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// GatewayModule serves the websocket endpoint and ends every session on stop.
type GatewayModule struct {
	gateway *Gateway
	ctx     context.Context
	cancel  context.CancelFunc
}

// Compile-time interface checks
var (
	_ mono.Module                = (*GatewayModule)(nil)
	_ mono.HealthCheckableModule = (*GatewayModule)(nil)
)

// NewModule creates a new GatewayModule.
func NewModule(gateway *Gateway) *GatewayModule {
	ctx, cancel := context.WithCancel(context.Background())
	return &GatewayModule{
		gateway: gateway,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Name returns the module name.
func (m *GatewayModule) Name() string {
	return "gateway"
}

// Start starts the module.
func (m *GatewayModule) Start(_ context.Context) error {
	log.Println("[gateway] Module started")
	return nil
}

// Stop cancels every running session.
func (m *GatewayModule) Stop(_ context.Context) error {
	m.cancel()
	log.Println("[gateway] Module stopped")
	return nil
}

// Health reports the number of live sessions.
func (m *GatewayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.ctx.Err() == nil,
		Message: "operational",
		Details: map[string]any{
			"connections": m.gateway.registry.ConnectionCount(),
		},
	}
}

// UpgradeGuard rejects plain HTTP requests to the websocket route.
func UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler upgrades the request and runs a session. The token is taken from
// the token query parameter or a bearer Authorization header when present.
func (m *GatewayModule) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		token := c.Query("token")
		if token == "" {
			token = bearerToken(c.Headers(fiber.HeaderAuthorization))
		}
		m.gateway.Serve(m.ctx, c, token)
	})
}
