package web

import (
	"github.com/dukex/taskgraph/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleServiceError maps service errors onto RFC 7807 problems.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		status int
		kind   string
	)

	switch {
	case services.IsValidationError(err):
		status, kind = fiber.StatusBadRequest, "validation_error"
	case services.IsNotFoundError(err):
		status, kind = fiber.StatusNotFound, "not_found"
	case services.IsConflictError(err):
		status, kind = fiber.StatusConflict, "conflict"
	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}
