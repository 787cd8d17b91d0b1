package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/persistence/file"
	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_ClaimReservesInactiveInstance(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.NewRegistry(logger)
	require.NoError(t, reg.Register("single", "one node", func() (*workflow.Workflow[string], error) {
		return workflow.New[string]("single", "1").
			MustAddNode(workflow.NewNode("only", func(_ context.Context, _ *workflow.Context) (workflow.Result, error) {
				return workflow.Success, nil
			})), nil
	}))

	runs := NewRuns(reg, file.NewStore(t.TempDir()), logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		assert.NoError(t, runs.Shutdown(ctx))
	})

	id := uuid.New()

	ar, release, err := runs.claim(t.Context(), id)
	require.NoError(t, err)
	require.Nil(t, ar)

	_, err = runs.Start(t.Context(), StartRequest{Workflow: "single", InstanceID: &id})
	require.ErrorIs(t, err, ErrInstanceActive)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, _, err = runs.claim(ctx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	_, err = runs.Start(t.Context(), StartRequest{Workflow: "single", InstanceID: &id})
	require.NoError(t, err)
	require.NoError(t, runs.Wait(t.Context(), id))
}
