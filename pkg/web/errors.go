package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("signature_invalid").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func serviceUnavailable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("service_unavailable").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}
