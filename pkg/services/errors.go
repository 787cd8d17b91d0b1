// Package services drives workflow instances on behalf of the CLI and the
// HTTP control plane.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/google/uuid"
)

var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Lookup errors (404 Not Found).
	ErrInstanceNotFound = errors.New("instance not found")
	ErrWorkflowNotFound = registry.ErrWorkflowNotFound

	// Conflicts (409 Conflict).
	ErrInstanceActive = errors.New("instance is already running in this process")
	ErrNotResumable   = executor.ErrNotResumable

	ErrListingUnsupported = errors.New("store cannot list instances")
	ErrShuttingDown       = errors.New("run service is shutting down")
)

// ServiceError wraps service-level errors with the operation and instance involved.
type ServiceError struct {
	Op         string
	InstanceID uuid.UUID
	Err        error
}

func (e *ServiceError) Error() string {
	if e.InstanceID == uuid.Nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newError(op string, id uuid.UUID, err error) *ServiceError {
	return &ServiceError{Op: op, InstanceID: id, Err: err}
}

// IsValidationError checks if an error should be reported as a bad request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, executor.ErrInvalidOptions) ||
		errors.Is(err, executor.ErrEmptySignalKey) ||
		errors.Is(err, persistence.ErrInvalidInstanceID)
}

// IsNotFoundError checks if an error names a missing instance, workflow or node.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrWorkflowNotFound)
}

// IsConflictError checks if an error reports an instance in the wrong state.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInstanceActive) ||
		errors.Is(err, ErrNotResumable) ||
		errors.Is(err, executor.ErrRunInProgress) ||
		errors.Is(err, executor.ErrInstanceLeased) ||
		persistence.IsInstanceLocked(err)
}
