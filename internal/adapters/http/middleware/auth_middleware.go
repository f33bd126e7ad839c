package middleware

import (
	"errors"
	"strings"

	"village-registry/internal/core/domain"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// AuthMiddleware creates authentication middleware
func AuthMiddleware(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Token from cookie or Authorization header
		accessToken := extractToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 2. Token must be valid and its session still open
		principal, err := auth.Authenticate(accessToken)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired access token")
		}

		// 3. Set principal in context
		c.Locals(principalKey, principal)

		return c.Next()
	}
}

// RequirePermission rejects callers the security gate does not allow
func RequirePermission(gate *services.SecurityGate, componentID, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := gate.Authorize(c.UserContext(), PrincipalFrom(c), componentID, action); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return response.Forbidden(c, "You don't have permission to access this resource")
			}
			return response.FromError(c, err)
		}
		return c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, or the anonymous one
func PrincipalFrom(c *fiber.Ctx) domain.Principal {
	p, _ := c.Locals(principalKey).(domain.Principal)
	return p
}

func extractToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
