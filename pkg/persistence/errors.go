package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInstanceLocked indicates the instance lock could not be acquired within the retry budget.
	ErrInstanceLocked = errors.New("instance is locked")

	// ErrInvalidInstanceID indicates a nil or malformed instance id.
	ErrInvalidInstanceID = errors.New("invalid instance id")

	// ErrCorruptSnapshot indicates a stored snapshot that does not match the snapshot schema.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrStoreClosed indicates the store was used after Close.
	ErrStoreClosed = errors.New("store closed")
)

// InstanceError wraps storage errors with the operation and instance involved.
type InstanceError struct {
	Op         string
	InstanceID uuid.UUID
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewInstanceError(op string, id uuid.UUID, err error) *InstanceError {
	return &InstanceError{Op: op, InstanceID: id, Err: err}
}

// IsInstanceLocked checks if an error indicates lock contention.
func IsInstanceLocked(err error) bool {
	return errors.Is(err, ErrInstanceLocked)
}

// IsCorruptSnapshot checks if an error indicates an unreadable snapshot.
func IsCorruptSnapshot(err error) bool {
	return errors.Is(err, ErrCorruptSnapshot)
}

// ValidateInstanceID rejects the nil uuid.
func ValidateInstanceID(id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrInvalidInstanceID
	}

	return nil
}
