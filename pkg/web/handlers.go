// Package web exposes the webhook HTTP surface: the single-tenant and
// multi-tenant inbound endpoints plus health checks.
package web

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/replyflow/replyflow/pkg/ingress"
	"github.com/replyflow/replyflow/pkg/persistence"
)

// signatureHeader carries the HMAC-SHA256 digest of the raw body,
// base64-encoded, as delivered by the chat platform.
const signatureHeader = "X-Line-Signature"

const maxBodySize = 1024 * 1024

type Handlers struct {
	logger     *slog.Logger
	controller *ingress.Controller
	store      persistence.Store
}

func NewHandlers(logger *slog.Logger, controller *ingress.Controller, store persistence.Store) *Handlers {
	return &Handlers{
		logger:     logger.With("module", "web"),
		controller: controller,
		store:      store,
	}
}

func (h *Handlers) App() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: maxBodySize,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Post("/webhook", h.Webhook)
	app.Post("/webhook/:botID/:webhookKey", h.TenantWebhook)
	app.Get("/health", h.HealthCheck)

	return app
}

// Webhook serves the single-tenant endpoint configured from the
// environment.
func (h *Handlers) Webhook(c fiber.Ctx) error {
	route := h.controller.DefaultRoute()
	if route == nil {
		return notFound(c, "single-tenant webhook is not configured")
	}

	return h.process(c, route)
}

// TenantWebhook resolves the owning bot from the path before
// processing. The webhook key in the path is compared by hash against
// the stored credential.
func (h *Handlers) TenantWebhook(c fiber.Ctx) error {
	route, err := h.controller.ResolveRoute(c.Context(), c.Params("botID"), c.Params("webhookKey"))
	if err != nil {
		if errors.Is(err, ingress.ErrRouteNotFound) {
			return notFound(c, "unknown webhook route")
		}

		return internalError(c, err)
	}

	return h.process(c, route)
}

// process hands the raw body to the pipeline. Per-event failures are
// contained inside the controller and still answer 200: the platform's
// redelivery policy turns hard errors into delivery storms. Only a bad
// signature, a malformed payload or unavailable persistence surface as
// error statuses.
func (h *Handlers) process(c fiber.Ctx, route *ingress.Route) error {
	// The fasthttp body buffer is reused after the handler returns;
	// the controller keeps the payload for audit, so copy it.
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	err := h.controller.HandleWebhook(c.Context(), body, c.Get(signatureHeader), route)

	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "ok"})
	case errors.Is(err, ingress.ErrInvalidSignature):
		return unauthorized(c, "signature verification failed")
	case errors.Is(err, ingress.ErrMalformedPayload):
		return badRequest(c, "request body is not a valid webhook payload")
	default:
		h.logger.Error("webhook request failed", "error", err)

		return internalError(c, err)
	}
}

func (h *Handlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)

		return serviceUnavailable(c, "persistence unavailable")
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}
