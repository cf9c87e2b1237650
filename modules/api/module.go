package api

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sungchulkim/sung-kim-capstone-server/modules/auth"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/gateway"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/ratelimit"
)

// HealthChecker is a module that can report its health.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// APIModule is the HTTP API module.
type APIModule struct {
	app       *fiber.App
	port      int
	clientURL string
	logger    types.Logger

	authContainer mono.ServiceContainer
	authPort      auth.AuthPort
	chat          *chat.ChatService
	gateway       *gateway.GatewayModule
	assistant     Replier
	limiter       *ratelimit.Middleware
	health        []HealthChecker
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule listening on port. clientURL is the
// allowed CORS origin.
func NewModule(port int, clientURL string, logger types.Logger) *APIModule {
	return &APIModule{
		port:      port,
		clientURL: clientURL,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authContainer = container
		m.authPort = auth.NewAuthAdapter(container)
	}
}

// SetChatService injects the chat service.
func (m *APIModule) SetChatService(service *chat.ChatService) {
	m.chat = service
}

// SetGateway injects the websocket gateway served on /ws.
func (m *APIModule) SetGateway(gw *gateway.GatewayModule) {
	m.gateway = gw
}

// SetAssistant injects the completion proxy.
func (m *APIModule) SetAssistant(assistant Replier) {
	m.assistant = assistant
}

// SetRateLimiter injects the limiter middleware. A nil limiter disables
// rate limiting.
func (m *APIModule) SetRateLimiter(limiter *ratelimit.Middleware) {
	m.limiter = limiter
}

// SetHealthChecks sets the modules reported by /health.
func (m *APIModule) SetHealthChecks(checkers ...HealthChecker) {
	m.health = checkers
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	switch {
	case m.authPort == nil:
		return errors.New("auth dependency not set")
	case m.chat == nil:
		return errors.New("chat service not set")
	case m.gateway == nil:
		return errors.New("gateway not set")
	case m.assistant == nil:
		return errors.New("assistant not set")
	}

	m.app = m.buildApp()

	addr := fmt.Sprintf(":%d", m.port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s (health: %v)", addr, healthNames(m.health))
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":       m.port,
			"rate_limit": m.limiter != nil,
		},
	}
}

func (m *APIModule) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     m.clientURL,
		AllowCredentials: m.clientURL != "*",
	}))

	m.setupRoutes(app)
	return app
}

// setupRoutes configures all API routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	handlers := NewHandlers(m.authPort, m.chat, m.assistant, m.health, m.logger)
	requireAuth := AuthMiddleware(m.authPort, m.logger)
	limitWrites := m.limiter.WriteLimit(userRateKey)
	limitAuth := m.limiter.AuthLimit()

	app.Get("/health", handlers.Health)
	app.Get("/test-db", handlers.TestDB)

	app.Post("/register", limitAuth, handlers.Register)
	app.Post("/login", limitAuth, handlers.Login)
	app.Get("/current-user", requireAuth, handlers.CurrentUser)

	app.Get("/rooms", requireAuth, handlers.ListRooms)
	app.Get("/rooms/:roomId", requireAuth, handlers.GetRoom)
	app.Get("/rooms/:roomId/messages", requireAuth, handlers.RoomMessages)

	app.Get("/messages", requireAuth, handlers.AllMessages)
	app.Post("/messages", requireAuth, limitWrites, handlers.CreateMessage)
	app.Put("/messages/:id", requireAuth, limitWrites, handlers.UpdateMessage)
	app.Delete("/messages/:id", requireAuth, limitWrites, handlers.DeleteMessage)
	app.Get("/messages/:id/reactions", requireAuth, handlers.ListReactions)
	app.Post("/messages/:id/reactions", requireAuth, limitWrites, handlers.AddReaction)

	app.Post("/api/chat", requireAuth, limitWrites, handlers.AssistantChat)

	if m.gateway != nil {
		app.Get("/ws", gateway.UpgradeGuard, m.gateway.Handler())
	}

	app.Use(handlers.NotFound)
}

// errorHandler handles errors returned from handlers and middleware.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, m.logger, err)
}
