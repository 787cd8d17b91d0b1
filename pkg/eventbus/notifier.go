package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskgraph/pkg/events"
	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
)

// Notifier turns executor activity into bus events. Publishing failures are
// logged and never interrupt a run.
type Notifier struct {
	bus      EventPublisher
	logger   *slog.Logger
	workerID string
	ids      func() string
	now      func() time.Time
}

func NewNotifier(bus EventBus, logger *slog.Logger, workerID string) *Notifier {
	return &Notifier{
		bus:      bus,
		logger:   logger.With("module", "notifier"),
		workerID: workerID,
		ids:      bus.GenerateID,
		now:      time.Now,
	}
}

// RunSummary describes a finished run.
type RunSummary struct {
	InstanceID   uuid.UUID
	Definition   models.DefinitionRef
	Status       models.InstanceStatus
	Succeeded    bool
	WaitingNodes []string
	Cycle        []string
	Err          error
	Duration     time.Duration
}

func (n *Notifier) RunStarted(ctx context.Context, instanceID uuid.UUID, def models.DefinitionRef, resumed bool) {
	n.publish(ctx, instanceID, &events.RunStarted{
		BaseEvent: n.base(events.RunStartedEvent, instanceID, def.Name),
		Version:   def.Version,
		Resumed:   resumed,
	})
}

func (n *Notifier) RunFinished(ctx context.Context, summary RunSummary) {
	ev := &events.RunFinished{
		BaseEvent:    n.base(events.RunFinishedEvent, summary.InstanceID, summary.Definition.Name),
		Version:      summary.Definition.Version,
		Status:       summary.Status,
		Succeeded:    summary.Succeeded,
		WaitingNodes: summary.WaitingNodes,
		Cycle:        summary.Cycle,
		Duration:     summary.Duration,
	}

	if summary.Err != nil {
		ev.Error = summary.Err.Error()
	}

	n.publish(ctx, summary.InstanceID, ev)
}

// NodeListener returns an executor listener publishing every node transition
// of the given workflow.
func NodeListener[K comparable](ctx context.Context, n *Notifier, workflow string) func(executor.NodeStateChange[K]) {
	return func(change executor.NodeStateChange[K]) {
		n.publish(ctx, change.InstanceID, &events.NodeStateChanged{
			BaseEvent: n.base(events.NodeStateChangedEvent, change.InstanceID, workflow),
			NodeID:    fmt.Sprint(change.NodeID),
			State:     change.State,
			Message:   change.Message,
			Sequence:  change.Sequence,
		})
	}
}

func (n *Notifier) base(t events.EventType, instanceID uuid.UUID, workflow string) events.BaseEvent {
	return events.BaseEvent{
		ID:         n.ids(),
		Type:       t,
		Timestamp:  n.now().UTC(),
		InstanceID: instanceID.String(),
		Workflow:   workflow,
		WorkerID:   n.workerID,
	}
}

func (n *Notifier) publish(ctx context.Context, instanceID uuid.UUID, event Event) {
	err := n.bus.Publish(ctx, instanceID.String(), event)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "instance_id", instanceID, "error", err)
	}
}
