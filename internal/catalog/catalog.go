// Package catalog holds the workflows built into the taskgraph binary.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/workflow"
)

const (
	ApprovalWorkflow  = "approval"
	MoleculesWorkflow = "molecules"
)

type Option func(*settings)

type settings struct {
	stepDelay time.Duration
	molecules []Molecule
}

// WithStepDelay sets how long each simulated computation takes.
func WithStepDelay(d time.Duration) Option {
	return func(s *settings) {
		s.stepDelay = d
	}
}

// WithMolecules replaces the default molecule set of the research pipeline.
func WithMolecules(molecules ...Molecule) Option {
	return func(s *settings) {
		s.molecules = molecules
	}
}

// Register adds every built-in workflow to reg.
func Register(reg *registry.Registry, opts ...Option) error {
	s := settings{
		stepDelay: 200 * time.Millisecond,
		molecules: DefaultMolecules(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	err := reg.Register(ApprovalWorkflow, "prepare, wait for a human approval signal, publish", Approval)
	if err != nil {
		return err
	}

	return reg.Register(MoleculesWorkflow, "quantum chemistry research pipeline over a molecule set", func() (*workflow.Workflow[string], error) {
		return Molecules(s.molecules, s.stepDelay)
	})
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("step interrupted: %w", ctx.Err())
	}
}
