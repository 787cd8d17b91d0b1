package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/taskgraph/pkg/cmd"
	"github.com/dukex/taskgraph/pkg/config"
	"github.com/dukex/taskgraph/pkg/eventbus"
	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/log"
	"github.com/dukex/taskgraph/pkg/otelhelper"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// loadConfig reads the configuration file and applies flag and environment overrides.
func loadConfig(command *cli.Command) (config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return cfg, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"database-url", &cfg.DatabaseURL},
		{"event-bus", &cfg.EventBus},
		{"owner-id", &cfg.OwnerID},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
	}

	for _, o := range overrides {
		if command.IsSet(o.flag) {
			*o.target = command.String(o.flag)
		}
	}

	if command.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if command.IsSet("port") {
		cfg.Port = command.Int("port")
	}

	return cfg, cfg.Validate()
}

// app holds the components shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    persistence.Store
	registry *registry.Registry
	bus      eventbus.EventBus
	runs     *services.Runs

	closers []func(context.Context) error
}

func newApp(ctx context.Context, command *cli.Command, module string, withBus bool) (*app, error) {
	cfg, err := loadConfig(command)
	if err != nil {
		return nil, err
	}

	log.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := log.WithModule(module)

	a := &app{cfg: cfg, logger: logger}

	a.registry, err = cmd.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	a.store, err = cmd.NewStore(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, a.store.Close)

	opts := []services.RunsOption{
		services.WithOwnerID(cfg.OwnerID),
		services.WithLeaseDuration(cfg.LeaseDuration),
		services.WithDefaultOptions(executor.Options{
			MaxParallelism:          cfg.MaxParallelism,
			FailFast:                cfg.FailFast,
			SkipDependentsOnFailure: cfg.SkipDependentsOnFailure,
		}),
	}

	if command.Bool("otel") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "taskgraph")
		if err != nil {
			a.close(ctx)

			return nil, err
		}

		a.closers = append(a.closers, shutdown)
		opts = append(opts, services.WithTracer(tracer))
	}

	if withBus {
		a.bus, err = cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, logger)
		if err != nil {
			a.close(ctx)

			return nil, err
		}

		if a.bus != nil {
			a.closers = append(a.closers, func(context.Context) error { return a.bus.Close() })
			opts = append(opts, services.WithNotifier(eventbus.NewNotifier(a.bus, logger, cfg.OwnerID)))
		}
	}

	a.runs = services.NewRuns(a.registry, a.store, logger, opts...)

	return a, nil
}

// close releases the components in reverse order of creation.
func (a *app) close(ctx context.Context) {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close resources", "error", err)
	}
}
