package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

const msgInternal = "Internal server error"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes and validates a JSON request body. Failures come back
// as a *domain.ValidationError.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.NewValidationError("Invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return domain.NewValidationError(describeFieldError(fieldErrs[0]))
		}
		return domain.NewValidationError("Invalid request body")
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// statusFor maps an error to its HTTP status and public message.
func statusFor(err error) (int, string) {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ae *domain.AuthError
		ce *domain.ConflictError
		ue *domain.UpstreamError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Message
	case errors.As(err, &nf):
		return fiber.StatusNotFound, nf.Message
	case errors.As(err, &ae):
		if ae.Forbidden {
			return fiber.StatusForbidden, ae.Message
		}
		return fiber.StatusUnauthorized, ae.Message
	case errors.As(err, &ce):
		return fiber.StatusConflict, ce.Message
	case errors.As(err, &ue):
		return ue.StatusCode, ue.Message
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

// writeError sends err as {"error": message}. Server-side causes are logged
// and never sent to the client.
func writeError(c *fiber.Ctx, logger types.Logger, err error) error {
	status, message := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: message})
}
