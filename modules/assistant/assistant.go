// Package assistant proxies a single user prompt to an OpenAI-compatible
// chat completions endpoint.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

var errEmptyCompletion = errors.New("completion returned no choices")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Assistant calls the completion API.
type Assistant struct {
	cfg config.AssistantConfig
}

// New creates an Assistant.
func New(cfg config.AssistantConfig) *Assistant {
	return &Assistant{cfg: cfg}
}

// Configured reports whether an API key is set.
func (a *Assistant) Configured() bool {
	return a.cfg.APIKey != ""
}

// Reply sends message as a single user turn and returns the first choice.
// An upstream failure is returned as an UpstreamError carrying its status.
// The call is bounded by the configured timeout or ctx's deadline, whichever
// comes first.
func (a *Assistant) Reply(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.NewValidationError("No message provided")
	}
	timeout, err := a.timeout(ctx)
	if err != nil {
		return "", err
	}

	agent := fiber.Post(strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+a.cfg.APIKey)
	agent.JSON(completionRequest{
		Model:    a.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: message}},
	})
	agent.Timeout(timeout)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("completion request: %w", errors.Join(errs...))
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &domain.UpstreamError{StatusCode: status, Message: upstreamMessage(status, body)}
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// timeout narrows the configured timeout to ctx's deadline. fiber's Agent
// takes a duration rather than a context.
func (a *Assistant) timeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("completion request: %w", err)
	}
	timeout := a.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("completion request: %w", context.DeadlineExceeded)
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout, nil
}

func upstreamMessage(status int, body []byte) string {
	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Upstream error"
}
