package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/dukex/taskgraph/pkg/workflow"
)

// ApprovalSignal is the signal that releases the approve step.
const ApprovalSignal = "approval"

// Decision is the payload expected on the approval signal.
type Decision struct {
	Approved bool   `json:"approved"`
	By       string `json:"by"`
	Comment  string `json:"comment,omitempty"`
}

// Approval builds prepare -> approve -> publish. The approve step suspends the
// instance until a Decision is posted on ApprovalSignal.
func Approval() (*workflow.Workflow[string], error) {
	wf := workflow.New[string](ApprovalWorkflow, "1", workflow.WithEquality(graph.CaseInsensitive))

	nodes := []*workflow.Node[string]{
		workflow.NewNode("prepare", workflow.FromFunc(prepare), workflow.WithDescription("collect the change set")),
		workflow.NewNode("approve", approve,
			workflow.WithSignalKey(ApprovalSignal),
			workflow.WithDescription("wait for a reviewer decision")),
		workflow.NewNode("publish", workflow.FromFunc(publish), workflow.WithDescription("release the approved change")),
	}

	for _, node := range nodes {
		err := wf.AddNode(node)
		if err != nil {
			return nil, err
		}
	}

	for _, edge := range [][2]string{{"prepare", "approve"}, {"approve", "publish"}} {
		err := wf.AddDependency(edge[0], edge[1])
		if err != nil {
			return nil, err
		}
	}

	return wf, nil
}

func prepare(_ context.Context, wctx *workflow.Context) error {
	wctx.Set("prepared_at", time.Now().UTC().Format(time.RFC3339))

	return nil
}

func approve(_ context.Context, wctx *workflow.Context) (workflow.Result, error) {
	if !wctx.Contains(workflow.SignalContextKey(ApprovalSignal)) {
		return workflow.WaitingForInput, nil
	}

	var decision Decision

	err := wctx.Decode(workflow.SignalContextKey(ApprovalSignal), &decision)
	if err != nil {
		return workflow.Failure, fmt.Errorf("invalid approval payload: %w", err)
	}

	wctx.Set("approved_by", decision.By)

	if !decision.Approved {
		return workflow.Failure, fmt.Errorf("rejected by %s", orUnknown(decision.By))
	}

	return workflow.Success, nil
}

func publish(_ context.Context, wctx *workflow.Context) error {
	by, _ := workflow.Value[string](wctx, "approved_by")
	wctx.Set("published", map[string]string{
		"approved_by": by,
		"at":          time.Now().UTC().Format(time.RFC3339),
	})

	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown reviewer"
	}

	return s
}
