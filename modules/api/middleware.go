package api

import (
	"strconv"
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
	"github.com/sungchulkim/sung-kim-capstone-server/modules/auth"
)

const (
	// UserContextKey is the key used to store user claims in the Fiber context.
	UserContextKey = "user"
)

// AuthMiddleware validates the bearer token. A missing token is rejected
// with 401 and an invalid or expired one with 403.
func AuthMiddleware(authPort auth.AuthPort, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "Access token required"})
		}

		claims, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return writeError(c, logger, err)
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}

// extractToken returns the credential after the scheme, e.g. "Bearer <token>".
func extractToken(header string) string {
	_, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// currentUser returns the claims stored by AuthMiddleware.
func currentUser(c *fiber.Ctx) *domain.Claims {
	claims, _ := c.Locals(UserContextKey).(*domain.Claims)
	return claims
}

// userRateKey keys write limits by the authenticated user.
func userRateKey(c *fiber.Ctx) string {
	if claims := currentUser(c); claims != nil {
		return "user:" + strconv.FormatUint(uint64(claims.UserID), 10)
	}
	return ""
}
