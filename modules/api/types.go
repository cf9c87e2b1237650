package api

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=191"`
	Password string `json:"password" validate:"required,max=72"`
}

// RegisterResponse is returned for a created account.
type RegisterResponse struct {
	Message  string `json:"message"`
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CurrentUserResponse identifies the caller.
type CurrentUserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// CreateMessageRequest posts a message to a room.
type CreateMessageRequest struct {
	RoomID  uint   `json:"roomId" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// UpdateMessageRequest replaces a message's content.
type UpdateMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// AddReactionRequest attaches an emoji to a message.
type AddReactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// AssistantRequest is a prompt for the completion proxy.
type AssistantRequest struct {
	Message string `json:"message"`
}

// AssistantResponse carries the completion text.
type AssistantResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse aggregates module health.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Modules map[string]ModuleHealth `json:"modules"`
}

// ModuleHealth is one module's health report.
type ModuleHealth struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
