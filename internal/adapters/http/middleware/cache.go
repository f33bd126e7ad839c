package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NoStore keeps issued documents, verification results and resident records
// out of every cache
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Vary(fiber.HeaderAuthorization, fiber.HeaderCookie)
		return c.Next()
	}
}

// PrivateCache lets the caller's browser reuse a successful GET for maxAge.
// What a response contains depends on the principal, so it varies on the
// credentials. A Cache-Control set by the handler wins.
func PrivateCache(maxAge time.Duration) fiber.Handler {
	value := fmt.Sprintf("private, max-age=%d", int(maxAge/time.Second))

	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		if len(c.Response().Header.Peek(fiber.HeaderCacheControl)) == 0 {
			c.Set(fiber.HeaderCacheControl, value)
		}
		c.Vary(fiber.HeaderAuthorization, fiber.HeaderCookie)
		return nil
	}
}
