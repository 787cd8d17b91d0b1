// Package registry maps workflow names to the builders that construct them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/taskgraph/pkg/workflow"
)

var (
	ErrWorkflowNotFound    = errors.New("workflow not registered")
	ErrWorkflowRegistered  = errors.New("workflow already registered")
	ErrInvalidRegistration = errors.New("invalid workflow registration")
)

// Builder constructs a fresh workflow. It is called once per run so node
// closures never share state between instances.
type Builder func() (*workflow.Workflow[string], error)

type Entry struct {
	Name        string
	Description string
	Build       Builder
}

type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		entries: make(map[string]Entry),
	}
}

func (r *Registry) Register(name, description string, build Builder) error {
	if name == "" || build == nil {
		return fmt.Errorf("%w: name and builder are required", ErrInvalidRegistration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrWorkflowRegistered, name)
	}

	r.entries[name] = Entry{Name: name, Description: description, Build: build}
	r.logger.Debug("registered workflow", "workflow", name)

	return nil
}

// Build constructs the workflow registered under name.
func (r *Registry) Build(name string) (*workflow.Workflow[string], error) {
	entry, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}

	wf, err := entry.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow %s: %w", name, err)
	}

	return wf, nil
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]

	return entry, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.entries))
}
