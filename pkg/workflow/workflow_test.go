package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeed(context.Context, *workflow.Context) (workflow.Result, error) {
	return workflow.Success, nil
}

func TestWorkflow_AddNode(t *testing.T) {
	t.Parallel()

	wf := workflow.New[string]("build", "1")

	require.NoError(t, wf.AddNode(workflow.NewNode("compile", succeed)))

	err := wf.AddNode(workflow.NewNode("compile", succeed))
	require.ErrorIs(t, err, workflow.ErrDuplicateNode)
	assert.True(t, workflow.IsDuplicateNode(err))

	var nodeErr *workflow.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "AddNode", nodeErr.Op)
	assert.Equal(t, "compile", nodeErr.NodeID)

	require.ErrorIs(t, wf.AddNode(nil), workflow.ErrInvalidNode)
	require.ErrorIs(t, wf.AddNode(&workflow.Node[string]{ID: "empty"}), workflow.ErrInvalidNode)

	assert.Equal(t, 1, wf.Len())
	assert.True(t, wf.Graph().ContainsVertex("compile"))
}

func TestWorkflow_AddDependency(t *testing.T) {
	t.Parallel()

	wf := workflow.New[string]("build", "1")
	wf.MustAddNode(workflow.NewNode("compile", succeed)).
		MustAddNode(workflow.NewNode("test", succeed))

	require.NoError(t, wf.AddDependency("compile", "test"))
	assert.True(t, wf.Graph().ContainsEdge("compile", "test"))

	err := wf.AddDependency("compile", "deploy")
	require.ErrorIs(t, err, workflow.ErrUnknownNode)
	assert.True(t, workflow.IsUnknownNode(err))

	err = wf.AddDependency("lint", "test")
	require.ErrorIs(t, err, workflow.ErrUnknownNode)

	deps, err := wf.Dependencies("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"compile"}, deps)

	dependents, err := wf.Dependents("compile")
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, dependents)
}

func TestWorkflow_Node(t *testing.T) {
	t.Parallel()

	wf := workflow.New[int]("numbers", "1")
	wf.MustAddNode(workflow.NewNode(1, succeed, workflow.WithSignalKey("go"), workflow.WithDescription("first")))

	node, err := wf.Node(1)
	require.NoError(t, err)
	assert.Equal(t, "go", node.SignalKey)
	assert.Equal(t, "first", node.Description)

	_, err = wf.Node(2)
	require.ErrorIs(t, err, workflow.ErrUnknownNode)
}

func TestWorkflow_Equality(t *testing.T) {
	t.Parallel()

	wf := workflow.New("ci", "1", workflow.WithEquality(graph.CaseInsensitive))
	wf.MustAddNode(workflow.NewNode("Build", succeed))

	require.ErrorIs(t, wf.AddNode(workflow.NewNode("BUILD", succeed)), workflow.ErrDuplicateNode)

	node, err := wf.Node("build")
	require.NoError(t, err)
	assert.Equal(t, "Build", node.ID)
}

func TestWorkflow_NodesAndLayers(t *testing.T) {
	t.Parallel()

	wf := workflow.New[string]("diamond", "2")
	for _, id := range []string{"a", "b", "c", "d"} {
		wf.MustAddNode(workflow.NewNode(id, succeed))
	}

	wf.MustAddDependency("a", "b").
		MustAddDependency("a", "c").
		MustAddDependency("b", "d").
		MustAddDependency("c", "d")

	ids := make([]string, 0, wf.Len())
	for _, n := range wf.Nodes() {
		ids = append(ids, n.ID)
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	layers, err := wf.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.ElementsMatch(t, []string{"b", "c"}, layers[1])

	assert.Equal(t, "diamond", wf.Definition().Name)
	assert.Equal(t, "2", wf.Definition().Version)
}

func TestMustAddNode_Panics(t *testing.T) {
	t.Parallel()

	wf := workflow.New[string]("x", "1")
	wf.MustAddNode(workflow.NewNode("a", succeed))

	assert.Panics(t, func() { wf.MustAddNode(workflow.NewNode("a", succeed)) })
	assert.Panics(t, func() { wf.MustAddDependency("a", "missing") })
}

func TestAdapters(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	wctx := workflow.NewContext()

	result, err := workflow.FromFunc(func(context.Context, *workflow.Context) error { return nil })(ctx, wctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.Success, result)

	boom := errors.New("boom")
	result, err = workflow.FromFunc(func(context.Context, *workflow.Context) error { return boom })(ctx, wctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, workflow.Failure, result)

	result, err = workflow.FromOutcome(func(context.Context, *workflow.Context) (workflow.Outcome, error) {
		return workflow.Outcome{OK: false, Message: "bad input"}, nil
	})(ctx, wctx)
	require.EqualError(t, err, "bad input")
	assert.Equal(t, workflow.Failure, result)

	result, err = workflow.FromOutcome(func(context.Context, *workflow.Context) (workflow.Outcome, error) {
		return workflow.Outcome{OK: true}, nil
	})(ctx, wctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.Success, result)
}

func TestResult_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", workflow.Success.String())
	assert.Equal(t, "failure", workflow.Failure.String())
	assert.Equal(t, "waiting-for-input", workflow.WaitingForInput.String())
}
