// Package rayid assigns every request a unique ray id for tracing.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header carries the ray id on responses and may supply one on requests
// from an upstream proxy.
const Header = "X-Ray-Id"

// Local is the fiber locals key the ray id is stored under.
const Local = "ray_id"

// New creates the ray id middleware. An incoming X-Ray-Id is honoured so
// traces continue across hops; otherwise a fresh id is generated.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(Header)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals(Local, rid)
		c.Set(Header, rid)
		return c.Next()
	}
}
