package mocks

import (
	"context"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of persistence.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	args := m.Called(ctx, id)

	state, _ := args.Get(0).(*models.InstanceState)

	return state, args.Error(1)
}

func (m *MockStore) AppendEvent(ctx context.Context, id uuid.UUID, event models.Event) error {
	args := m.Called(ctx, id, event)

	return args.Error(0)
}

func (m *MockStore) SaveSnapshot(ctx context.Context, state *models.InstanceState) error {
	args := m.Called(ctx, state)

	return args.Error(0)
}

func (m *MockStore) Events(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	args := m.Called(ctx, id)

	events, _ := args.Get(0).([]models.Event)

	return events, args.Error(1)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
