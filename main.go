package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/middleware/accesslog"
	"github.com/go-monolith/mono/middleware/requestid"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/api"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/assistant"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/auth"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/gateway"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/ratelimit"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/realtime"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/store"
)

func main() {
	log.Println("=== Realtime Chat Server ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	storeModule := store.NewModule(db, cfg.Database.Driver)
	repo := storeModule.Repository()

	authModule, err := auth.NewModule(repo, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to create auth module: %v", err)
	}

	realtimeModule := realtime.NewModule(logger)
	chatModule := chat.NewModule(repo, realtimeModule.Bus(), logger)
	gatewayModule := gateway.NewModule(gateway.New(
		realtimeModule.Registry(),
		authModule.Service(),
		chatModule.Service(),
		cfg.Realtime,
		logger,
	))
	assistantModule := assistant.NewModule(cfg.Assistant)
	rateLimitModule := ratelimit.NewModule(cfg.RateLimit, logger)

	apiModule := api.NewModule(cfg.Port, cfg.ClientURL, logger)
	apiModule.SetChatService(chatModule.Service())
	apiModule.SetGateway(gatewayModule)
	apiModule.SetAssistant(assistantModule.Assistant())
	apiModule.SetRateLimiter(rateLimitModule.Middleware())
	apiModule.SetHealthChecks(
		storeModule,
		authModule,
		realtimeModule,
		chatModule,
		gatewayModule,
		assistantModule,
		rateLimitModule,
		apiModule,
	)

	// Service middleware must be registered before the modules it wraps
	requestIDMiddleware, err := requestid.New(requestid.WithHeaderName("X-Request-ID"))
	if err != nil {
		log.Fatalf("Failed to create requestid middleware: %v", err)
	}
	accessLogMiddleware, err := accesslog.New(
		accesslog.WithOutput(os.Stdout),
		accesslog.WithFormat(accesslog.FormatJSON),
	)
	if err != nil {
		log.Fatalf("Failed to create accesslog middleware: %v", err)
	}

	// Order: middleware, independent modules, then dependent modules
	modules := []mono.Module{
		requestIDMiddleware,
		accessLogMiddleware,
		storeModule,
		authModule,
		realtimeModule,
		chatModule,
		gatewayModule,
		assistantModule,
		rateLimitModule,
		apiModule, // depends on auth
	}
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  GET    /health                   - Module health")
	log.Println("  GET    /test-db                  - Database connectivity")
	log.Println("  POST   /register                 - Register a new user")
	log.Println("  POST   /login                    - Login and get a token")
	log.Println("")
	log.Println("  Protected Endpoints (require Bearer token):")
	log.Println("  GET    /current-user             - Current user")
	log.Println("  GET    /rooms                    - List rooms")
	log.Println("  GET    /rooms/:roomId/messages   - Room history (?after=<id>)")
	log.Println("  POST   /messages                 - Post a message")
	log.Println("  PUT    /messages/:id             - Edit your message")
	log.Println("  DELETE /messages/:id             - Delete your message")
	log.Println("  POST   /messages/:id/reactions   - React to a message")
	log.Println("  POST   /api/chat                 - Ask the assistant")
	log.Println("")
	log.Println("  WebSocket: GET /ws?token=<token>")
	if !cfg.RateLimit.Enabled() {
		log.Println("")
		log.Println("Rate limiting disabled (set REDIS_ADDR to enable)")
	}
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
