package api

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/xyz-jphil/ccapis-proxy/internal/apperror"
	"github.com/xyz-jphil/ccapis-proxy/internal/dispatcher"
	"github.com/xyz-jphil/ccapis-proxy/internal/emitter"
)

func registerRoutes(app *fiber.App, d *dispatcher.Dispatcher) {
	app.Post("/v1/messages", messagesLimiter(), messagesHandler(d))
	app.Post("/v1/complete", completeHandler)
	app.Get("/health", healthHandler(d))
	app.Get("/health/accounts", accountsHandler(d))
}

// messagesHandler implements spec §6's POST /v1/messages, branching on the
// request's "stream" flag between the buffered path (a single JSON
// response) and the streaming path (an SSE body written incrementally).
func messagesHandler(d *dispatcher.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Body()
		nowMS := time.Now().UnixMilli()

		var peek struct {
			Stream bool `json:"stream"`
		}
		_ = json.Unmarshal(raw, &peek)

		if !peek.Stream {
			msg, aerr := d.HandleBuffered(c.Context(), raw, nowMS)
			if aerr != nil {
				return writeAppError(c, aerr)
			}
			return c.Status(fiber.StatusOK).JSON(msg)
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		ctx := c.Context()
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			sw := emitter.NewStreamWriter(w, w.Flush)
			if aerr := d.HandleStreaming(ctx, raw, nowMS, sw); aerr != nil {
				_ = sw.Error(aerr.Error())
			}
		}))
		return nil
	}
}

// completeHandler stubs the legacy text-completion endpoint: spec §6 keeps
// the route reachable but unimplemented.
func completeHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
		"error":   "not_implemented",
		"message": "/v1/complete is not supported; use /v1/messages",
	})
}

func healthHandler(d *dispatcher.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(d.BuildHealth())
	}
}

func accountsHandler(d *dispatcher.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/plain; charset=utf-8")
		return c.Status(fiber.StatusOK).SendString(d.BuildAccountHealthText())
	}
}

// writeAppError maps a classified error onto the client-facing HTTP status
// of spec §6/§7: every upstream failure class (quota exhausted, rate
// limited, generic transient, internal) surfaces as a generic 500, never
// the upstream's own status code. Only a malformed inbound request keeps
// its own status. aerr.StatusCode still carries the upstream code for
// logging and health classification upstream of this boundary.
func writeAppError(c *fiber.Ctx, aerr *apperror.Error) error {
	status := fiber.StatusInternalServerError
	if aerr.Kind == apperror.KindClientBadRequest {
		status = aerr.StatusCode
		if status == 0 {
			status = fiber.StatusBadRequest
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   aerr.Kind.String(),
		"message": aerr.Error(),
	})
}
