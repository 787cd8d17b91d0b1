package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		states []models.NodeState
		want   models.InstanceStatus
	}{
		{"waiting wins", []models.NodeState{models.NodeFailed, models.NodeWaitingForInput}, models.InstanceSuspended},
		{"failed", []models.NodeState{models.NodeSucceeded, models.NodeFailed}, models.InstanceFailed},
		{"completed", []models.NodeState{models.NodeSucceeded, models.NodeSkipped, models.NodeCanceled}, models.InstanceCompleted},
		{"running", []models.NodeState{models.NodeSucceeded, models.NodePending}, models.InstanceRunning},
		{"running node", []models.NodeState{models.NodeRunning}, models.InstanceRunning},
		{"empty", nil, models.InstanceCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, models.StatusOf(tt.states))
		})
	}
}

func TestNodeState_Predicates(t *testing.T) {
	t.Parallel()

	assert.True(t, models.NodeWaitingForInput.Unresolved())
	assert.False(t, models.NodeSkipped.Unresolved())
	assert.True(t, models.NodeCanceled.Blocking())
	assert.False(t, models.NodeSucceeded.Blocking())
	assert.False(t, models.NodeState("bogus").Valid())
}

func TestNewInstanceState(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	state := models.NewInstanceState(id, now)

	assert.Equal(t, id, state.InstanceID)
	assert.Equal(t, models.InstanceRunning, state.Status)
	assert.Equal(t, models.UnknownDefinition, state.Definition)
	assert.Equal(t, now, state.CreatedUTC)
	assert.Empty(t, state.Nodes)
	assert.Zero(t, state.LastAppliedEventSequence)
}

func TestRecoverExpiredLeases(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state := models.NewInstanceState(uuid.New(), now)

	state.Node("expired").State = models.NodeRunning
	state.Node("expired").Lease = models.NewLease("other", now.Add(-2*time.Minute), time.Minute)

	state.Node("mine").State = models.NodeRunning
	state.Node("mine").Lease = models.NewLease("me", now, time.Minute)

	state.Node("foreign").State = models.NodeRunning
	state.Node("foreign").Lease = models.NewLease("other", now, time.Minute)

	state.Node("done").State = models.NodeSucceeded

	recovered, leased := state.RecoverExpiredLeases("me", now)

	assert.ElementsMatch(t, []string{"expired", "mine"}, recovered)
	assert.Equal(t, []string{"foreign"}, leased)
	assert.Equal(t, models.NodePending, state.Nodes["expired"].State)
	assert.Nil(t, state.Nodes["expired"].Lease)
	assert.Equal(t, models.NodeRunning, state.Nodes["foreign"].State)
	assert.Equal(t, models.NodeSucceeded, state.Nodes["done"].State)
}

func TestInstanceState_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	state := models.NewInstanceState(uuid.New(), now)
	state.Definition = models.DefinitionRef{Name: "approval", Version: "1"}
	state.Status = models.InstanceSuspended
	state.LastAppliedEventSequence = 7
	state.Nodes["approve"] = &models.NodeRecord{
		NodeID:           "approve",
		State:            models.NodeWaitingForInput,
		WaitingForSignal: "approval",
	}
	state.Nodes["prepare"] = &models.NodeRecord{NodeID: "prepare", State: models.NodeSucceeded}
	state.Context["answer"] = json.RawMessage(`{"value":42}`)
	state.PendingSignals = map[string][]json.RawMessage{"other": {json.RawMessage(`"x"`)}}

	data, err := json.Marshal(state)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"lastAppliedEventSequence":7`)
	assert.Contains(t, string(data), `"waitingForSignal":"approval"`)
	assert.Contains(t, string(data), `"state":"waiting-for-input"`)

	var decoded models.InstanceState

	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, state.InstanceID, decoded.InstanceID)
	assert.Equal(t, models.NodeWaitingForInput, decoded.Nodes["approve"].State)
	assert.Equal(t, "approval", decoded.Nodes["approve"].WaitingForSignal)
	assert.JSONEq(t, `{"value":42}`, string(decoded.Context["answer"]))
	assert.Equal(t, state.Definition, decoded.Definition)
	assert.Len(t, decoded.PendingSignals["other"], 1)
}

func TestInstanceState_Clone(t *testing.T) {
	t.Parallel()

	state := models.NewInstanceState(uuid.New(), time.Now())
	state.Node("a").Lease = models.NewLease("me", time.Now(), time.Minute)
	state.Context["k"] = json.RawMessage(`1`)

	clone := state.Clone()
	clone.Node("a").State = models.NodeFailed
	clone.Node("a").Lease.OwnerID = "someone"
	clone.Context["k"] = json.RawMessage(`2`)

	assert.Equal(t, models.NodePending, state.Nodes["a"].State)
	assert.Equal(t, "me", state.Nodes["a"].Lease.OwnerID)
	assert.Equal(t, json.RawMessage(`1`), state.Context["k"])
}
