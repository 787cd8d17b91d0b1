// Package web exposes the run service over HTTP.
package web

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	runs      *services.Runs
	validator *validator.Validate
}

func NewAPIHandlers(runs *services.Runs, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		runs:      runs,
		validator: validator,
	}
}

// Routes registers every endpoint on app.
func Routes(app *fiber.App, h *APIHandlers) {
	app.Get("/health", h.HealthCheck)
	app.Get("/workflows", h.GetWorkflows)

	i := app.Group("/instances")
	i.Get("/", h.ListInstances)
	i.Post("/", h.StartInstance)
	i.Get("/:id", h.GetInstance)
	i.Get("/:id/events", h.GetInstanceEvents)
	i.Post("/:id/signals/:key", h.PostSignal)
	i.Post("/:id/nodes/:node/resume", h.ResumeNode)
	i.Post("/:id/cancel", h.CancelInstance)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, ok := h.runs.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  fiber.Map{"store": storeCheck},
		"active":    len(h.runs.Active()),
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.runs.Workflows()
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) ListInstances(c fiber.Ctx) error {
	instances, err := h.runs.ListInstances(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if status := c.Query("status"); status != "" {
		instances = slices.DeleteFunc(instances, func(s services.InstanceSummary) bool {
			return string(s.Status) != status
		})
	}

	return c.JSON(fiber.Map{"instances": instances, "total_count": len(instances)})
}

func (h *APIHandlers) StartInstance(c fiber.Ctx) error {
	var req StartInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	start := services.StartRequest{
		Workflow:                req.Workflow,
		MaxParallelism:          req.MaxParallelism,
		FailFast:                req.FailFast,
		SkipDependentsOnFailure: req.SkipDependentsOnFailure,
	}

	if req.InstanceID != nil {
		id := uuid.MustParse(*req.InstanceID)
		start.InstanceID = &id
	}

	id, err := h.runs.Start(c.Context(), start)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartInstanceResponse{InstanceID: id, Workflow: req.Workflow})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid instance ID")
	}

	state, err := h.runs.Instance(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(InstanceResponse{InstanceState: state, Active: slices.Contains(h.runs.Active(), id)})
}

func (h *APIHandlers) GetInstanceEvents(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid instance ID")
	}

	events, err := h.runs.Events(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	docs := make([]json.RawMessage, 0, len(events))

	for _, ev := range events {
		doc, err := models.MarshalEvent(ev)
		if err != nil {
			return handleServiceError(c, err)
		}

		docs = append(docs, doc)
	}

	return c.JSON(EventsResponse{InstanceID: id, Events: docs})
}

// PostSignal takes the raw request body as the signal payload.
func (h *APIHandlers) PostSignal(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid instance ID")
	}

	key := c.Params("key")

	delivered, err := h.runs.PostSignal(c.Context(), id, key, slices.Clone(c.Body()))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SignalResponse{InstanceID: id, Signal: key, Delivered: delivered})
}

func (h *APIHandlers) ResumeNode(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid instance ID")
	}

	err = h.runs.Resume(c.Context(), id, c.Params("node"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid instance ID")
	}

	err = h.runs.Cancel(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
