package web

import (
	"encoding/json"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
)

// StartInstanceRequest represents the request body for starting a workflow instance.
type StartInstanceRequest struct {
	Workflow                string  `json:"workflow"                validate:"required_without=InstanceID"`
	InstanceID              *string `json:"instanceId"              validate:"omitempty,uuid"`
	MaxParallelism          *int    `json:"maxParallelism"          validate:"omitempty,min=1"`
	FailFast                *bool   `json:"failFast"`
	SkipDependentsOnFailure *bool   `json:"skipDependentsOnFailure"`
}

type StartInstanceResponse struct {
	InstanceID uuid.UUID `json:"instanceId"`
	Workflow   string    `json:"workflow"`
}

type SignalResponse struct {
	InstanceID uuid.UUID `json:"instanceId"`
	Signal     string    `json:"signal"`
	Delivered  bool      `json:"delivered"`
}

type EventsResponse struct {
	InstanceID uuid.UUID         `json:"instanceId"`
	Events     []json.RawMessage `json:"events"`
}

type InstanceResponse struct {
	*models.InstanceState

	Active bool `json:"active"`
}
