package persistence_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceError(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("6f1c7d2e-3b5a-4c8d-9e0f-1a2b3c4d5e6f")
	err := persistence.NewInstanceError("AppendEvent", id, persistence.ErrInstanceLocked)

	assert.Equal(t, "AppendEvent operation failed for instance 6f1c7d2e-3b5a-4c8d-9e0f-1a2b3c4d5e6f: instance is locked", err.Error())
	assert.True(t, persistence.IsInstanceLocked(err))
	assert.True(t, persistence.IsInstanceLocked(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, persistence.IsCorruptSnapshot(err))
	assert.Equal(t, persistence.ErrInstanceLocked, errors.Unwrap(err))
}

func TestValidateInstanceID(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, persistence.ValidateInstanceID(uuid.Nil), persistence.ErrInvalidInstanceID)
	require.NoError(t, persistence.ValidateInstanceID(uuid.New()))
}

func TestCodecs(t *testing.T) {
	t.Parallel()

	var s persistence.KeyCodec[string] = persistence.StringCodec{}

	decoded, err := s.Decode(s.Encode("Build"))
	require.NoError(t, err)
	assert.Equal(t, "Build", decoded)

	var i persistence.KeyCodec[int] = persistence.IntCodec{}
	assert.Equal(t, "42", i.Encode(42))

	n, err := i.Decode("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = i.Decode("forty-two")
	require.Error(t, err)
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	event := &models.NodeStateChanged{NodeID: "a", State: models.NodeSucceeded}
	models.Stamp(event, 1, now())

	state := persistence.Materialize(id, nil, []models.Event{event}, now)
	assert.Equal(t, id, state.InstanceID)
	assert.Equal(t, models.NodeSucceeded, state.Nodes["a"].State)
	assert.Equal(t, int64(1), state.LastAppliedEventSequence)

	snapshot := models.NewInstanceState(id, now())
	snapshot.LastAppliedEventSequence = 1
	snapshot.Node("a").State = models.NodeFailed

	state = persistence.Materialize(id, snapshot, []models.Event{event}, now)
	assert.Equal(t, models.NodeFailed, state.Nodes["a"].State)
}
