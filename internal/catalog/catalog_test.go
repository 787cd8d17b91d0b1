package catalog_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/taskgraph/internal/catalog"
	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor() *executor.Executor[string] {
	return executor.New(executor.WithLogger[string](discard()), executor.WithOwnerID[string]("catalog-test"))
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(discard())
	require.NoError(t, catalog.Register(reg, catalog.WithStepDelay(0)))

	assert.Equal(t, []string{catalog.ApprovalWorkflow, catalog.MoleculesWorkflow}, reg.Names())
}

func TestMolecules_Layers(t *testing.T) {
	t.Parallel()

	wf, err := catalog.Molecules(catalog.DefaultMolecules(), 0)
	require.NoError(t, err)

	layers, err := wf.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 4)

	assert.Equal(t, []string{catalog.StepImportData}, layers[0])
	assert.Equal(t, []string{catalog.StepGeometryOptimization}, layers[1])
	assert.Equal(t, []string{catalog.StepElectronicStructure}, layers[2])
	assert.ElementsMatch(t, []string{
		catalog.StepFukuiCalculation, catalog.StepChargeGeodisk, catalog.StepChargeChelpg,
	}, layers[3])
}

func TestMolecules_NeedsMolecules(t *testing.T) {
	t.Parallel()

	_, err := catalog.Molecules(nil, 0)
	require.Error(t, err)
}

func TestMolecules_Run(t *testing.T) {
	t.Parallel()

	wf, err := catalog.Molecules([]catalog.Molecule{{Name: "water"}, {Name: "ammonium", Charge: 1}}, time.Millisecond)
	require.NoError(t, err)

	var collected atomic.Value

	wf.MustAddNode(workflow.NewNode("collect", workflow.FromFunc(func(_ context.Context, wctx *workflow.Context) error {
		var result catalog.StepResult

		err := wctx.Decode(catalog.StepChargeChelpg, &result)
		if err == nil {
			collected.Store(result)
		}

		return err
	}))).MustAddDependency(catalog.StepChargeChelpg, "collect")

	report, err := newExecutor().Run(t.Context(), wf, executor.Options{MaxParallelism: 3}, executor.RunParams{})
	require.NoError(t, err)
	require.True(t, report.Succeeded())

	result, ok := collected.Load().(catalog.StepResult)
	require.True(t, ok)
	assert.Equal(t, catalog.StepChargeChelpg, result.Step)
	assert.Len(t, result.Molecules, 2)
}

func TestApproval_SuspendsUntilApproved(t *testing.T) {
	t.Parallel()

	wf, err := catalog.Approval()
	require.NoError(t, err)

	exec := newExecutor()
	payload, err := json.Marshal(catalog.Decision{Approved: true, By: "ana"})
	require.NoError(t, err)

	exec.OnNodeStateChanged(func(change executor.NodeStateChange[string]) {
		if change.NodeID == "approve" && change.State == models.NodeWaitingForInput {
			_, err := exec.PostSignal(t.Context(), change.InstanceID, catalog.ApprovalSignal, payload)
			assert.NoError(t, err)
		}
	})

	report, err := exec.Run(t.Context(), wf, executor.Options{MaxParallelism: 1}, executor.RunParams{})
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, models.NodeSucceeded, report.NodeStates["publish"])
}

func TestApproval_Rejected(t *testing.T) {
	t.Parallel()

	wf, err := catalog.Approval()
	require.NoError(t, err)

	exec := newExecutor()

	exec.OnNodeStateChanged(func(change executor.NodeStateChange[string]) {
		if change.NodeID == "approve" && change.State == models.NodeWaitingForInput {
			_, err := exec.PostSignal(t.Context(), change.InstanceID, catalog.ApprovalSignal, json.RawMessage(`{"approved": false, "by": "rui"}`))
			assert.NoError(t, err)
		}
	})

	report, err := exec.Run(t.Context(), wf, executor.Options{MaxParallelism: 1, SkipDependentsOnFailure: true}, executor.RunParams{})
	require.NoError(t, err)
	assert.False(t, report.Succeeded())
	assert.Equal(t, models.NodeFailed, report.NodeStates["approve"])
	assert.Contains(t, report.Messages["approve"], "rejected by rui")
	assert.Equal(t, models.NodeSkipped, report.NodeStates["publish"])
}
