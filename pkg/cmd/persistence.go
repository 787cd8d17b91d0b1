// Package cmd wires the components shared by the taskgraph commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/persistence/file"
	"github.com/dukex/taskgraph/pkg/persistence/postgresql"
	"github.com/dukex/taskgraph/pkg/persistence/redis"
)

var ErrUnsupportedStore = errors.New("unsupported database url scheme")

// NewStore opens the store named by databaseURL: file://<dir>, a bare
// directory path, postgres://... or redis://...
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Store, error) {
	scheme, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		scheme, rest = "file", databaseURL
	}

	switch scheme {
	case "file":
		logger.InfoContext(ctx, "Using file store", "root", rest)

		return file.NewStore(rest, file.WithLogger(logger)), nil
	case "postgres", "postgresql":
		logger.InfoContext(ctx, "Using PostgreSQL store")

		return postgresql.NewStore(ctx, logger, databaseURL)
	case "redis", "rediss":
		logger.InfoContext(ctx, "Using Redis store")

		store, err := redis.NewFromURL(databaseURL, redis.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		err = store.HealthCheck(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, scheme)
	}
}
