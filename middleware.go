package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// ClaimsLocalsKey is where Protected stores the validated claims on the
// request context.
const ClaimsLocalsKey = "auth_claims"

// Protected returns a fiber middleware that requires a valid bearer access
// token. Validated claims are stored in Locals under ClaimsLocalsKey and
// in the request's user context, so handlers can use GetClaims.
func Protected(tokens *TokenService, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return unauthorizedJSON(c, ErrTokenMalformed.Message, ErrTokenMalformed.TextCode)
		}

		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			logger.Debug("bearer token rejected: %v", err)
			if goerrors.Is(err, ErrTokenExpired) {
				return unauthorizedJSON(c, ErrTokenExpired.Message, ErrTokenExpired.TextCode)
			}
			return unauthorizedJSON(c, ErrTokenMalformed.Message, ErrTokenMalformed.TextCode)
		}

		c.Locals(ClaimsLocalsKey, claims)
		c.SetUserContext(WithClaimsContext(c.UserContext(), claims))

		return c.Next()
	}
}

// RequireRole gates a route on a role claim. Mount it after Protected.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(ClaimsLocalsKey).(*SessionClaims)
		if !ok || !claims.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fiber.Map{
					"message":   "insufficient permissions",
					"text_code": "FORBIDDEN",
				},
			})
		}
		return c.Next()
	}
}

func unauthorizedJSON(c *fiber.Ctx, message, textCode string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   message,
			"text_code": textCode,
		},
	})
}
