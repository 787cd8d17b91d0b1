package registry_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, _ *workflow.Context) (workflow.Result, error) {
	return workflow.Success, nil
}

func newRegistry() *registry.Registry {
	return registry.NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	t.Parallel()

	reg := newRegistry()

	builds := 0
	require.NoError(t, reg.Register("deploy", "ships a release", func() (*workflow.Workflow[string], error) {
		builds++

		return workflow.New[string]("deploy", "1").MustAddNode(workflow.NewNode("ship", noop)), nil
	}))

	first, err := reg.Build("deploy")
	require.NoError(t, err)

	second, err := reg.Build("deploy")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, builds)

	entry, ok := reg.Lookup("deploy")
	require.True(t, ok)
	assert.Equal(t, "ships a release", entry.Description)
}

func TestRegistry_Errors(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	build := func() (*workflow.Workflow[string], error) { return nil, errors.New("bad definition") }

	require.NoError(t, reg.Register("broken", "", build))
	require.ErrorIs(t, reg.Register("broken", "", build), registry.ErrWorkflowRegistered)
	require.ErrorIs(t, reg.Register("", "", build), registry.ErrInvalidRegistration)
	require.ErrorIs(t, reg.Register("nil", "", nil), registry.ErrInvalidRegistration)

	_, err := reg.Build("missing")
	require.ErrorIs(t, err, registry.ErrWorkflowNotFound)

	_, err = reg.Build("broken")
	require.ErrorContains(t, err, "bad definition")
}

func TestRegistry_NamesSorted(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	build := func() (*workflow.Workflow[string], error) { return workflow.New[string]("x", "1"), nil }

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(name, "", build))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}
