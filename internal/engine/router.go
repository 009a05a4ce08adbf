package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes exposes every configured endpoint at GET /api/<route>.
// guards run after resolution and before the query, e.g. the API key check.
// Any other /api path is a 404.
func RegisterRoutes(app *fiber.App, h *Handler, guards ...fiber.Handler) {
	api := app.Group("/api")

	for _, ep := range h.registry.AllEndpoints() {
		if ep.Route == "" {
			continue
		}
		handlers := []fiber.Handler{h.Resolve(ep.Route)}
		handlers = append(handlers, guards...)
		handlers = append(handlers, h.Show)
		api.Get("/"+ep.Route, handlers...)
	}

	api.Use(func(c *fiber.Ctx) error {
		return NotFoundError()
	})
}
