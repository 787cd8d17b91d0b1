// Package persistence defines the durable boundary of the executor: an append
// only event log plus a materialised snapshot per workflow instance.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
)

// Store persists instance state. Implementations serialise access to one
// instance across processes with an advisory per-instance lock.
type Store interface {
	// Load returns the snapshot of the instance with every newer logged event
	// applied, or a fresh running state when the instance has never been saved.
	Load(ctx context.Context, id uuid.UUID) (*models.InstanceState, error)
	AppendEvent(ctx context.Context, id uuid.UUID, event models.Event) error
	SaveSnapshot(ctx context.Context, state *models.InstanceState) error
	// Events returns the whole log of the instance in sequence order. Entries of
	// unknown type are skipped.
	Events(ctx context.Context, id uuid.UUID) ([]models.Event, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Materialize rebuilds the current state from a snapshot and the log.
// A nil snapshot stands for an instance that was never snapshotted.
func Materialize(id uuid.UUID, snapshot *models.InstanceState, events []models.Event, now func() time.Time) *models.InstanceState {
	state := snapshot
	if state == nil {
		state = models.NewInstanceState(id, now())
	}

	state.Replay(events)

	return state
}
