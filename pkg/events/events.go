// Package events defines the notifications published while workflow instances run.
package events

import (
	"time"

	"github.com/dukex/taskgraph/pkg/models"
)

type EventType string

// Topic carries every run notification.
const Topic = "taskgraph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	NodeStateChangedEvent EventType = "node.state.changed"
	RunStartedEvent       EventType = "run.started"
	RunFinishedEvent      EventType = "run.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id"`
	Workflow   string         `json:"workflow"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NodeStateChanged mirrors a durable node transition.
type NodeStateChanged struct {
	BaseEvent

	NodeID   string           `json:"node_id"`
	State    models.NodeState `json:"state"`
	Message  string           `json:"message,omitempty"`
	Sequence int64            `json:"sequence"`
}

func (n NodeStateChanged) GetType() EventType {
	return NodeStateChangedEvent
}

type RunStarted struct {
	BaseEvent

	Version string `json:"version"`
	// Resumed is set when the run continues an instance that already existed.
	Resumed bool `json:"resumed"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	Version      string                `json:"version"`
	Status       models.InstanceStatus `json:"status"`
	Succeeded    bool                  `json:"succeeded"`
	WaitingNodes []string              `json:"waiting_nodes,omitempty"`
	Cycle        []string              `json:"cycle,omitempty"`
	Error        string                `json:"error,omitempty"`
	Duration     time.Duration         `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}
