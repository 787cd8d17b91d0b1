package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when a node id is added twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode is returned when an operation references a node that was never added.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidNode is returned for nodes without a run function.
	ErrInvalidNode = errors.New("invalid node")

	// ErrKeyNotFound is returned by Context.Decode for a missing key.
	ErrKeyNotFound = errors.New("context key not found")
)

// NodeError wraps builder errors with the operation and node involved.
type NodeError struct {
	Op       string
	Workflow string
	NodeID   string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s failed for node %s in workflow %s: %v", e.Op, e.NodeID, e.Workflow, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsUnknownNode checks if an error indicates a node was not found.
func IsUnknownNode(err error) bool {
	return errors.Is(err, ErrUnknownNode)
}

// IsDuplicateNode checks if an error indicates a node id was reused.
func IsDuplicateNode(err error) bool {
	return errors.Is(err, ErrDuplicateNode)
}
