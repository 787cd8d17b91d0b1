package persistence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	state := models.NewInstanceState(uuid.New(), now)
	state.Status = models.InstanceSuspended
	state.Node("wait").State = models.NodeWaitingForInput
	state.Node("wait").WaitingForSignal = "wait"
	state.Node("run").State = models.NodeRunning
	state.Node("run").Lease = models.NewLease("host-a", now, time.Minute)
	state.Context["input"] = json.RawMessage(`[1,2,3]`)

	data, err := persistence.EncodeSnapshot(state)
	require.NoError(t, err)

	decoded, err := persistence.DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, state.InstanceID, decoded.InstanceID)
	assert.Equal(t, "wait", decoded.Nodes["wait"].WaitingForSignal)
	assert.Equal(t, "host-a", decoded.Nodes["run"].Lease.OwnerID)
	assert.JSONEq(t, `[1,2,3]`, string(decoded.Context["input"]))
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":       `{`,
		"missing fields": `{"instanceId":"6f1c7d2e-3b5a-4c8d-9e0f-1a2b3c4d5e6f"}`,
		"bad status": `{"instanceId":"6f1c7d2e-3b5a-4c8d-9e0f-1a2b3c4d5e6f","definitionRef":{"name":"x","version":"1"},
			"status":"exploded","createdUtc":"2026-01-01T00:00:00Z","updatedUtc":"2026-01-01T00:00:00Z",
			"lastAppliedEventSequence":0,"nodes":{}}`,
		"bad node state": `{"instanceId":"6f1c7d2e-3b5a-4c8d-9e0f-1a2b3c4d5e6f","definitionRef":{"name":"x","version":"1"},
			"status":"running","createdUtc":"2026-01-01T00:00:00Z","updatedUtc":"2026-01-01T00:00:00Z",
			"lastAppliedEventSequence":0,"nodes":{"a":{"nodeId":"a","state":"sleeping"}}}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := persistence.DecodeSnapshot([]byte(doc))
			require.ErrorIs(t, err, persistence.ErrCorruptSnapshot)
		})
	}
}

func TestDecodeEvents(t *testing.T) {
	t.Parallel()

	lines := [][]byte{
		[]byte(`{"sequence":2,"utcTimestamp":"2026-01-01T00:00:02Z","type":"context-set","contextKey":"k","value":1}`),
		[]byte(`{"sequence":1,"utcTimestamp":"2026-01-01T00:00:01Z","type":"instance-status-changed","status":"running"}`),
		[]byte(`{"sequence":3,"utcTimestamp":"2026-01-01T00:00:03Z","type":"future-event"}`),
		[]byte(`garbage`),
		[]byte(``),
	}

	var skipped []int

	events := persistence.DecodeEvents(lines, func(line int, _ error) {
		skipped = append(skipped, line)
	})

	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].GetSequence())
	assert.Equal(t, models.ContextSetEvent, events[1].GetType())
	assert.Equal(t, []int{3, 4}, skipped)
}
