package executor

import (
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
)

// Report is the outcome of a run.
type Report[K comparable] struct {
	InstanceID uuid.UUID              `json:"instanceId"`
	Definition models.DefinitionRef   `json:"definitionRef"`
	Status     models.InstanceStatus  `json:"status"`
	NodeStates map[K]models.NodeState `json:"nodeStates"`
	Messages   map[K]string           `json:"messages,omitempty"`
	// Cycle is set, and nothing was executed, when the workflow is not acyclic.
	Cycle []K `json:"cycle,omitempty"`
	// WaitingNodes lists the nodes left waiting for input, in insertion order.
	WaitingNodes []K `json:"waitingNodes,omitempty"`
}

// Succeeded reports whether the workflow was acyclic and every node ended
// succeeded or skipped.
func (r *Report[K]) Succeeded() bool {
	if len(r.Cycle) > 0 {
		return false
	}

	for _, s := range r.NodeStates {
		if s != models.NodeSucceeded && s != models.NodeSkipped {
			return false
		}
	}

	return true
}

func (r *Report[K]) WaitingCount() int {
	return len(r.WaitingNodes)
}

// NodeStateChange is delivered to listeners after the transition is durable.
type NodeStateChange[K comparable] struct {
	InstanceID uuid.UUID
	NodeID     K
	State      models.NodeState
	Message    string
	Sequence   int64
	At         time.Time
}
