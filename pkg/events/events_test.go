package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/events"
	"github.com/dukex/taskgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, events.NodeStateChangedEvent, events.NodeStateChanged{}.GetType())
	assert.Equal(t, events.RunStartedEvent, events.RunStarted{}.GetType())
	assert.Equal(t, events.RunFinishedEvent, events.RunFinished{}.GetType())
}

func TestNodeStateChanged_JSONShape(t *testing.T) {
	t.Parallel()

	ev := events.NodeStateChanged{
		BaseEvent: events.BaseEvent{
			ID:         "01J",
			Type:       events.NodeStateChangedEvent,
			Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			InstanceID: "a3c1",
			Workflow:   "approval",
		},
		NodeID:   "review",
		State:    models.NodeWaitingForInput,
		Sequence: 4,
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "01J",
		"type": "node.state.changed",
		"timestamp": "2026-03-01T12:00:00Z",
		"instance_id": "a3c1",
		"workflow": "approval",
		"node_id": "review",
		"state": "waiting-for-input",
		"sequence": 4
	}`, string(data))
}
