package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOptions is returned by Run when the options fail validation.
	ErrInvalidOptions = errors.New("invalid executor options")

	// ErrInstanceLeased is returned by Run when a node of the instance is still
	// running under an unexpired lease held by another owner.
	ErrInstanceLeased = errors.New("instance is leased by another owner")

	// ErrRunInProgress is returned by Run when the executor is already driving a run.
	ErrRunInProgress = errors.New("executor already has an active run")

	// ErrNotResumable is returned by Resume for nodes that are not waiting for
	// input or whose dependencies are unresolved.
	ErrNotResumable = errors.New("node is not resumable")

	// ErrEmptySignalKey is returned by PostSignal for an empty key.
	ErrEmptySignalKey = errors.New("signal key is empty")

	// ErrNodePanic marks the failure of a node whose body panicked.
	ErrNodePanic = errors.New("node panicked")
)

// LeasedError lists the nodes held by other owners.
type LeasedError struct {
	Nodes []string
}

func (e *LeasedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInstanceLeased, strings.Join(e.Nodes, ", "))
}

func (e *LeasedError) Unwrap() error {
	return ErrInstanceLeased
}
