package cmd

import (
	"log/slog"

	"github.com/dukex/taskgraph/internal/catalog"
	"github.com/dukex/taskgraph/pkg/registry"
)

// NewRegistry returns a registry holding the built-in workflows.
func NewRegistry(log *slog.Logger) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	err := catalog.Register(reg)
	if err != nil {
		return nil, err
	}

	return reg, nil
}
