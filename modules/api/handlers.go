package api

import (
	"context"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/auth"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/chat"
)

// Replier answers a single prompt.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth      auth.AuthPort
	chat      *chat.ChatService
	assistant Replier
	health    []HealthChecker
	logger    types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, chatService *chat.ChatService, assistant Replier, health []HealthChecker, logger types.Logger) *Handlers {
	return &Handlers{
		auth:      authPort,
		chat:      chatService,
		assistant: assistant,
		health:    health,
		logger:    logger,
	}
}

// Health reports every module's health (GET /health).
func (h *Handlers) Health(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "healthy", Modules: make(map[string]ModuleHealth, len(h.health))}
	for _, checker := range h.health {
		status := checker.Health(c.UserContext())
		resp.Modules[checker.Name()] = ModuleHealth{
			Healthy: status.Healthy,
			Message: status.Message,
			Details: status.Details,
		}
		if !status.Healthy {
			resp.Status = "unhealthy"
		}
	}

	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// TestDB checks database connectivity (GET /test-db).
func (h *Handlers) TestDB(c *fiber.Ctx) error {
	if err := h.chat.Ping(c.UserContext()); err != nil {
		h.logger.Error("Database connection check failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Database connection failed"})
	}
	return c.JSON(fiber.Map{"message": "Database connection successful"})
}

// Register creates an account (POST /register).
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}

	user, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		Message:  "User registered successfully",
		ID:       user.ID,
		Username: user.Username,
	})
}

// Login issues a bearer token (POST /login).
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(token)
}

// CurrentUser returns the caller's account (GET /current-user).
func (h *Handlers) CurrentUser(c *fiber.Ctx) error {
	claims := currentUser(c)
	user, err := h.auth.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(CurrentUserResponse{ID: user.ID, Username: user.Username})
}

// ListRooms returns every room (GET /rooms).
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.chat.ListRooms(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(rooms)
}

// GetRoom returns one room (GET /rooms/:roomId).
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	roomID, err := idParam(c, "roomId", "Invalid room id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	room, err := h.chat.GetRoom(c.UserContext(), roomID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(room)
}

// RoomMessages returns a room's history (GET /rooms/:roomId/messages).
// The optional after query parameter returns only newer messages.
func (h *Handlers) RoomMessages(c *fiber.Ctx) error {
	roomID, err := idParam(c, "roomId", "Invalid room id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	var after uint
	if raw := c.Query("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			return writeError(c, h.logger, domain.NewValidationError("Invalid after parameter"))
		}
		after = uint(parsed)
	}

	messages, err := h.chat.RoomMessages(c.UserContext(), roomID, after)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(messages)
}

// AllMessages returns every message (GET /messages).
func (h *Handlers) AllMessages(c *fiber.Ctx) error {
	messages, err := h.chat.AllMessages(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(messages)
}

// CreateMessage posts a message (POST /messages).
func (h *Handlers) CreateMessage(c *fiber.Ctx) error {
	var req CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}

	view, err := h.chat.PostMessage(c.UserContext(), currentUser(c).UserID, req.RoomID, req.Content)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// UpdateMessage edits an owned message (PUT /messages/:id).
func (h *Handlers) UpdateMessage(c *fiber.Ctx) error {
	messageID, err := idParam(c, "id", "Invalid message id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	var req UpdateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}

	view, err := h.chat.EditMessage(c.UserContext(), currentUser(c).UserID, messageID, req.Content)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(view)
}

// DeleteMessage removes an owned message (DELETE /messages/:id).
func (h *Handlers) DeleteMessage(c *fiber.Ctx) error {
	messageID, err := idParam(c, "id", "Invalid message id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	if err := h.chat.DeleteMessage(c.UserContext(), currentUser(c).UserID, messageID); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListReactions returns a message's reactions (GET /messages/:id/reactions).
func (h *Handlers) ListReactions(c *fiber.Ctx) error {
	messageID, err := idParam(c, "id", "Invalid message id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	reactions, err := h.chat.MessageReactions(c.UserContext(), messageID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(reactions)
}

// AddReaction reacts to a message (POST /messages/:id/reactions).
func (h *Handlers) AddReaction(c *fiber.Ctx) error {
	messageID, err := idParam(c, "id", "Invalid message id")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	var req AddReactionRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}

	reaction, err := h.chat.AddReaction(c.UserContext(), currentUser(c).UserID, messageID, req.Emoji)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reaction)
}

// AssistantChat proxies a prompt to the completion API (POST /api/chat).
func (h *Handlers) AssistantChat(c *fiber.Ctx) error {
	var req AssistantRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, h.logger, domain.NewValidationError("No message provided"))
	}

	reply, err := h.assistant.Reply(c.UserContext(), req.Message)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(AssistantResponse{Reply: reply})
}

// NotFound answers any unmatched route.
func (h *Handlers) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Route not found"})
}

func idParam(c *fiber.Ctx, name, invalid string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 0)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError(invalid)
	}
	return uint(id), nil
}

// healthNames lists the registered module names, for logging.
func healthNames(checkers []HealthChecker) []string {
	return lo.Map(checkers, func(hc HealthChecker, _ int) string { return hc.Name() })
}
