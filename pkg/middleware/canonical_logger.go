package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"go.uber.org/zap"
)

// CanonicalLoggerMiddleware emits exactly one log line per request,
// carrying the fields handlers and usecases accumulated on the LogContext.
func CanonicalLoggerMiddleware(log *logger.CanonicalLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logCtx := logger.NewLogContext()

		c.Locals("log_context", logCtx)

		userCtx := logger.WithLogContext(c.UserContext(), logCtx)
		c.SetUserContext(userCtx)

		if reqID := c.Locals("requestid"); reqID != nil {
			if id, ok := reqID.(string); ok {
				logCtx.AddField(zap.String(logger.FieldRequestID, id))
			}
		}

		start := time.Now()

		// Deferred so the line is emitted even when a handler panics and
		// the recover middleware turns it into a 500.
		defer func() {
			duration := time.Since(start)
			status := c.Response().StatusCode()

			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Duration("duration", duration),
			}
			fields = append(fields, logCtx.Fields()...)

			switch {
			case status >= 500:
				log.Error("http_request", fields...)
			case status >= 400:
				log.Info("http_request_client_error", fields...)
			default:
				log.Info("http_request", fields...)
			}
		}()

		return c.Next()
	}
}
