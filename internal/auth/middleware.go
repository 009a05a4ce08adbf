package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"mini-api/internal/engine"
	"mini-api/internal/metadata"
)

// APIKeyMiddleware returns a Fiber middleware that checks the API key of the
// endpoint resolved earlier in the chain. Endpoints whose effective auth is
// disabled, or has no key, pass through.
func APIKeyMiddleware(reg *metadata.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ep := engine.EndpointFrom(c)
		if ep == nil {
			return engine.NotFoundError()
		}
		if !Authorized(c, reg.AuthFor(ep)) {
			return engine.UnauthorizedError()
		}
		return c.Next()
	}
}

// Credential extracts the API key from the request. The header wins over the
// query parameter.
func Credential(c *fiber.Ctx, cfg metadata.AuthConfig) string {
	if v := c.Get(cfg.HeaderName()); v != "" {
		return v
	}
	return c.Query(cfg.QueryName())
}

// Authorized reports whether the request may access an endpoint with the
// given effective auth settings.
func Authorized(c *fiber.Ctx, cfg metadata.AuthConfig) bool {
	if !cfg.Required() {
		return true
	}
	return Matches(Credential(c, cfg), cfg.Key)
}

// Matches compares a presented credential with the expected key in constant
// time. An empty credential never matches.
func Matches(credential, key string) bool {
	if credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(key)) == 1
}
