// Package models defines the durable records shared by the executor and the
// persistence backends: node and instance state, leases and the event log.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NodeState string

const (
	NodePending         NodeState = "pending"
	NodeRunning         NodeState = "running"
	NodeWaitingForInput NodeState = "waiting-for-input"
	NodeSucceeded       NodeState = "succeeded"
	NodeFailed          NodeState = "failed"
	NodeSkipped         NodeState = "skipped"
	NodeCanceled        NodeState = "canceled"
)

// Unresolved reports whether dependents of a node in this state must keep waiting.
func (s NodeState) Unresolved() bool {
	return s == NodePending || s == NodeRunning || s == NodeWaitingForInput
}

// Blocking reports whether the state makes dependents ineligible to run.
func (s NodeState) Blocking() bool {
	return s == NodeFailed || s == NodeSkipped || s == NodeCanceled
}

func (s NodeState) Valid() bool {
	switch s {
	case NodePending, NodeRunning, NodeWaitingForInput, NodeSucceeded, NodeFailed, NodeSkipped, NodeCanceled:
		return true
	default:
		return false
	}
}

type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstanceSuspended InstanceStatus = "suspended"
	InstanceFailed    InstanceStatus = "failed"
	InstanceCompleted InstanceStatus = "completed"
)

// StatusOf derives the instance status from its node states. Waiting wins over
// failure, failure wins over completion.
func StatusOf(states []NodeState) InstanceStatus {
	failed := false
	done := true

	for _, s := range states {
		switch s {
		case NodeWaitingForInput:
			return InstanceSuspended
		case NodeFailed:
			failed = true
		case NodeSucceeded, NodeSkipped, NodeCanceled:
		default:
			done = false
		}
	}

	switch {
	case failed:
		return InstanceFailed
	case done:
		return InstanceCompleted
	default:
		return InstanceRunning
	}
}

// UnknownDefinition is recorded on instances created without a definition reference.
var UnknownDefinition = DefinitionRef{Name: "unknown", Version: "0"}

type DefinitionRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Lease is an ownership claim on a running node.
type Lease struct {
	OwnerID     string    `json:"ownerId"`
	AcquiredUTC time.Time `json:"acquiredUtc"`
	ExpiresUTC  time.Time `json:"expiresUtc"`
}

func NewLease(owner string, now time.Time, duration time.Duration) *Lease {
	return &Lease{
		OwnerID:     owner,
		AcquiredUTC: now.UTC(),
		ExpiresUTC:  now.UTC().Add(duration),
	}
}

func (l *Lease) Expired(now time.Time) bool {
	return l == nil || !now.Before(l.ExpiresUTC)
}

type NodeRecord struct {
	NodeID           string    `json:"nodeId"`
	State            NodeState `json:"state"`
	Message          string    `json:"message,omitempty"`
	WaitingForSignal string    `json:"waitingForSignal,omitempty"`
	Lease            *Lease    `json:"lease,omitempty"`
}

// InstanceState is the materialised snapshot of one workflow instance.
type InstanceState struct {
	InstanceID               uuid.UUID                    `json:"instanceId"`
	Definition               DefinitionRef                `json:"definitionRef"`
	Status                   InstanceStatus               `json:"status"`
	CreatedUTC               time.Time                    `json:"createdUtc"`
	UpdatedUTC               time.Time                    `json:"updatedUtc"`
	LastAppliedEventSequence int64                        `json:"lastAppliedEventSequence"`
	Nodes                    map[string]*NodeRecord       `json:"nodes"`
	Context                  map[string]json.RawMessage   `json:"context"`
	PendingSignals           map[string][]json.RawMessage `json:"pendingSignals,omitempty"`
}

// NewInstanceState returns the empty state of an instance that has never run.
func NewInstanceState(id uuid.UUID, now time.Time) *InstanceState {
	return &InstanceState{
		InstanceID: id,
		Definition: UnknownDefinition,
		Status:     InstanceRunning,
		CreatedUTC: now.UTC(),
		UpdatedUTC: now.UTC(),
		Nodes:      make(map[string]*NodeRecord),
		Context:    make(map[string]json.RawMessage),
	}
}

// Node returns the record for an encoded node id, creating a pending one if needed.
func (s *InstanceState) Node(encodedID string) *NodeRecord {
	if s.Nodes == nil {
		s.Nodes = make(map[string]*NodeRecord)
	}

	rec, ok := s.Nodes[encodedID]
	if !ok {
		rec = &NodeRecord{NodeID: encodedID, State: NodePending}
		s.Nodes[encodedID] = rec
	}

	return rec
}

func (s *InstanceState) NodeStates() []NodeState {
	states := make([]NodeState, 0, len(s.Nodes))
	for _, rec := range s.Nodes {
		states = append(states, rec.State)
	}

	return states
}

// RecoverExpiredLeases resets running nodes whose lease has expired, or whose
// lease belongs to owner, back to pending. It returns the encoded ids it reset
// and the ids of running nodes still leased by another owner.
func (s *InstanceState) RecoverExpiredLeases(owner string, now time.Time) (recovered, leased []string) {
	for id, rec := range s.Nodes {
		if rec.State != NodeRunning {
			continue
		}

		if !rec.Lease.Expired(now) && rec.Lease.OwnerID != owner {
			leased = append(leased, id)

			continue
		}

		rec.State = NodePending
		rec.Message = "recovered from expired lease"
		rec.Lease = nil
		recovered = append(recovered, id)
	}

	return recovered, leased
}

// Clone returns a deep copy of the state.
func (s *InstanceState) Clone() *InstanceState {
	c := *s

	c.Nodes = make(map[string]*NodeRecord, len(s.Nodes))
	for id, rec := range s.Nodes {
		r := *rec
		if rec.Lease != nil {
			lease := *rec.Lease
			r.Lease = &lease
		}

		c.Nodes[id] = &r
	}

	c.Context = make(map[string]json.RawMessage, len(s.Context))
	for k, v := range s.Context {
		c.Context[k] = append(json.RawMessage(nil), v...)
	}

	if s.PendingSignals != nil {
		c.PendingSignals = make(map[string][]json.RawMessage, len(s.PendingSignals))
		for k, queue := range s.PendingSignals {
			c.PendingSignals[k] = append([]json.RawMessage(nil), queue...)
		}
	}

	return &c
}
