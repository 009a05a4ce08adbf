package instrument

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mini-api/internal/engine"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = fiber.HeaderXRequestID

// unmatched labels requests that did not resolve to an endpoint.
const unmatched = "_unmatched"

// RequestID returns a middleware that assigns each request a UUID unless the
// client sent one.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:    RequestIDHeader,
		Generator: uuid.NewString,
	})
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

// AccessLog returns a middleware that logs every request and records request
// metrics. m may be nil. Errors from later handlers are passed to the app's
// error handler first so the logged status is the one sent.
func AccessLog(logger *zap.Logger, m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		latency := time.Since(start)
		status := c.Response().StatusCode()

		endpoint := unmatched
		if ep := engine.EndpointFrom(c); ep != nil {
			endpoint = ep.Key
		}

		if m != nil {
			m.Requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
		}

		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("endpoint", endpoint),
			zap.String("request_id", GetRequestID(c)))
		return nil
	}
}
