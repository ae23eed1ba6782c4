// Package api wires the Fiber app and its routes around the dispatcher.
// Grounded on the teacher's NewServer/customErrorHandler
// (internal/api/server.go) — same middleware stack (recover, logger,
// cors) and error-handler shape — with the CSRF and WebSocket-upgrade
// middleware dropped (this proxy has no browser session of its own to
// protect and no WebSocket surface) and the GCS client bootstrap replaced
// by nothing (no cloud collaborator in this domain). The teacher's
// AuthRateLimiter is kept and retargeted at /v1/messages, the one route
// that fans out to paid upstream credentials.
package api

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xyz-jphil/ccapis-proxy/internal/dispatcher"
)

// NewServer builds the Fiber app and registers every route.
func NewServer(d *dispatcher.Dispatcher) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		AppName:      "ccapis-proxy",
		ProxyHeader:  fiber.HeaderXForwardedFor,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, x-api-key",
	}))

	registerRoutes(app, d)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": err.Error(),
	})
}

// messagesLimiter caps the rate of POST /v1/messages per client IP, the
// same shape as the teacher's AuthRateLimiter but sized for a proxy route
// rather than a login endpoint.
func messagesLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limit_error",
				"message": "too many requests, please slow down",
			})
		},
	})
}

// StartServer listens on the given port.
func StartServer(app *fiber.App, port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("ccapis-proxy listening on %s", addr)
	return app.Listen(addr)
}
