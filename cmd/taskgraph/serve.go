package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/taskgraph/pkg/events"
	"github.com/dukex/taskgraph/pkg/services"
	"github.com/dukex/taskgraph/pkg/triggers/schedule"
	"github.com/dukex/taskgraph/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP control plane and the configured schedules",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, command, "serve", true)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			a.logger.InfoContext(ctx, "Initializing taskgraph server", "port", a.cfg.Port, "event_bus", a.cfg.EventBus)

			err = a.watchRuns(ctx)
			if err != nil {
				return err
			}

			triggers, err := a.startSchedules(ctx)
			if err != nil {
				return err
			}

			app := newHTTPApp(a.runs)
			listenErr := make(chan error, 1)

			go func() {
				listenErr <- app.Listen(":"+strconv.Itoa(a.cfg.Port), fiber.ListenConfig{DisableStartupMessage: true})
			}()

			select {
			case err = <-listenErr:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			a.logger.InfoContext(shutdownCtx, "Shutting down taskgraph server")

			for _, trigger := range triggers {
				if stopErr := trigger.Stop(shutdownCtx); stopErr != nil {
					a.logger.WarnContext(shutdownCtx, "Failed to stop schedule", "id", trigger.ID, "error", stopErr)
				}
			}

			if shutdownErr := app.ShutdownWithContext(shutdownCtx); shutdownErr != nil {
				a.logger.WarnContext(shutdownCtx, "Failed to stop HTTP server", "error", shutdownErr)
			}

			if shutdownErr := a.runs.Shutdown(shutdownCtx); shutdownErr != nil {
				a.logger.WarnContext(shutdownCtx, "Runs did not stop in time", "error", shutdownErr)
			}

			return err
		},
	}
}

func newHTTPApp(runs *services.Runs) *fiber.App {
	handlers := web.NewAPIHandlers(runs, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("taskgraph API")
	})

	web.Routes(app, handlers)

	return app
}

func (a *app) startSchedules(ctx context.Context) ([]*schedule.Trigger, error) {
	triggers := make([]*schedule.Trigger, 0, len(a.cfg.Schedules))

	start := func(ctx context.Context, workflow string) error {
		id, err := a.runs.Start(ctx, services.StartRequest{Workflow: workflow})
		if err == nil {
			a.logger.InfoContext(ctx, "Scheduled run started", "workflow", workflow, "instance_id", id)
		}

		return err
	}

	for i, s := range a.cfg.Schedules {
		if _, ok := a.registry.Lookup(s.Workflow); !ok {
			return nil, fmt.Errorf("schedule %d names unknown workflow %s", i, s.Workflow)
		}

		trigger, err := schedule.NewTrigger(fmt.Sprintf("schedule-%d", i), s.Cron, s.Workflow, a.logger)
		if err != nil {
			return nil, err
		}

		err = trigger.Start(ctx, start)
		if err != nil {
			return nil, err
		}

		triggers = append(triggers, trigger)
	}

	return triggers, nil
}

// watchRuns logs finished runs as they come off the bus.
func (a *app) watchRuns(ctx context.Context) error {
	if a.bus == nil {
		return nil
	}

	err := a.bus.Handle(events.RunFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.RunFinished)
		if !ok {
			return nil
		}

		a.logger.InfoContext(ctx, "Run finished",
			"instance_id", finished.InstanceID,
			"workflow", finished.Workflow,
			"status", finished.Status,
			"succeeded", finished.Succeeded,
			"duration", finished.Duration)

		return nil
	})
	if err != nil {
		return err
	}

	return a.bus.Subscribe(ctx)
}
