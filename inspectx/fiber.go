package inspectx

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/eventcraft/auth"
)

// Mount registers the routes on a Fiber app under the prefix.
func (s *Server) Mount(app fiber.Router) {
	api := app.Group(s.opts.Prefix)
	s.docs.RegisterWithFiber(api, "/docs")

	api.Get("/scopes", s.fiberHandle(auth.ScopeRead, func(*fiber.Ctx) (any, error) {
		return s.scopes()
	}))
	api.Get("/holders", s.fiberHandle(auth.ScopeRead, func(c *fiber.Ctx) (any, error) {
		return s.holders(c.Query("scope"))
	}))
	api.Get("/holder", s.fiberHandle(auth.ScopeRead, func(c *fiber.Ctx) (any, error) {
		return s.holder(c.Query("scope"), c.Query("event"))
	}))
	api.Post("/liveness/invalidate", s.fiberHandle(auth.ScopeAdmin, func(*fiber.Ctx) (any, error) {
		return s.invalidate()
	}))
}

func (s *Server) fiberHandle(scope string, fn func(*fiber.Ctx) (any, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.authorize(c.Get(fiber.HeaderAuthorization), scope); err != nil {
			return fiberError(c, err)
		}
		result, err := fn(c)
		if err != nil {
			s.logger.Debug("%s %s failed: %v", c.Method(), c.Path(), err)
			return fiberError(c, err)
		}
		return c.JSON(result)
	}
}

func fiberError(c *fiber.Ctx, err error) error {
	xerr := asError(err)
	status := xerr.HTTPStatus
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(xerr)
}
