package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	NodeStateChangedEvent      EventType = "node-state-changed"
	SignalPostedEvent          EventType = "signal-posted"
	SignalConsumedEvent        EventType = "signal-consumed"
	ContextSetEvent            EventType = "context-set"
	InstanceStatusChangedEvent EventType = "instance-status-changed"
)

// ErrUnknownEventType is returned by UnmarshalEvent for a type it does not
// know. Readers of the log skip such lines.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is one immutable fact of an instance log. The set of implementations
// is closed: NodeStateChanged, SignalPosted, SignalConsumed, ContextSet and
// InstanceStatusChanged.
type Event interface {
	GetType() EventType
	GetSequence() int64
	GetTimestamp() time.Time
	header() *EventHeader
}

type EventHeader struct {
	Sequence     int64     `json:"sequence"`
	UTCTimestamp time.Time `json:"utcTimestamp"`
	Type         EventType `json:"type"`
}

func (h *EventHeader) GetSequence() int64 {
	return h.Sequence
}

func (h *EventHeader) GetTimestamp() time.Time {
	return h.UTCTimestamp
}

func (h *EventHeader) header() *EventHeader {
	return h
}

type NodeStateChanged struct {
	EventHeader

	NodeID           string    `json:"encodedNodeId"`
	State            NodeState `json:"state"`
	Message          string    `json:"message,omitempty"`
	WaitingForSignal string    `json:"waitingForSignal,omitempty"`
	Lease            *Lease    `json:"lease,omitempty"`
}

func (*NodeStateChanged) GetType() EventType {
	return NodeStateChangedEvent
}

type SignalPosted struct {
	EventHeader

	SignalKey string          `json:"signalKey"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (*SignalPosted) GetType() EventType {
	return SignalPostedEvent
}

type SignalConsumed struct {
	EventHeader

	SignalKey string `json:"signalKey"`
	NodeID    string `json:"encodedNodeId"`
}

func (*SignalConsumed) GetType() EventType {
	return SignalConsumedEvent
}

type ContextSet struct {
	EventHeader

	Key   string          `json:"contextKey"`
	Value json.RawMessage `json:"value"`
}

func (*ContextSet) GetType() EventType {
	return ContextSetEvent
}

type InstanceStatusChanged struct {
	EventHeader

	Status InstanceStatus `json:"status"`
}

func (*InstanceStatusChanged) GetType() EventType {
	return InstanceStatusChangedEvent
}

// Stamp assigns the sequence number and timestamp of an event about to be appended.
func Stamp(e Event, sequence int64, at time.Time) {
	h := e.header()
	h.Sequence = sequence
	h.UTCTimestamp = at.UTC()
	h.Type = e.GetType()
}

// MarshalEvent encodes e as a single JSON object tagged with its type.
func MarshalEvent(e Event) ([]byte, error) {
	e.header().Type = e.GetType()

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.GetType(), err)
	}

	return data, nil
}

// UnmarshalEvent decodes one event, dispatching on its type tag.
func UnmarshalEvent(data []byte) (Event, error) {
	var h EventHeader

	err := json.Unmarshal(data, &h)
	if err != nil {
		return nil, fmt.Errorf("failed to decode event header: %w", err)
	}

	var event Event

	switch h.Type {
	case NodeStateChangedEvent:
		event = &NodeStateChanged{}
	case SignalPostedEvent:
		event = &SignalPosted{}
	case SignalConsumedEvent:
		event = &SignalConsumed{}
	case ContextSetEvent:
		event = &ContextSet{}
	case InstanceStatusChangedEvent:
		event = &InstanceStatusChanged{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, h.Type)
	}

	err = json.Unmarshal(data, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", h.Type, err)
	}

	return event, nil
}
