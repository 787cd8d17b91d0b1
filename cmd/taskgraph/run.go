package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/services"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

var ErrRunFailed = errors.New("run did not succeed")

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run a built-in workflow in the foreground",
		ArgsUsage: "<workflow>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "instance-id",
				Usage: "Continue this instance instead of starting a new one",
			},
			&cli.IntFlag{
				Name:  "max-parallelism",
				Usage: "Nodes allowed to run at once (defaults to the configuration)",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Cancel the run at the first failure",
			},
			&cli.BoolFlag{
				Name:  "skip-dependents",
				Usage: "Skip nodes whose dependencies did not succeed",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req, err := startRequest(command)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, command, "run", false)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			report, err := a.runs.RunSync(ctx, req)
			if report != nil {
				printErr := printReport(command, report)
				if printErr != nil {
					return printErr
				}
			}

			if err != nil {
				return err
			}

			if !report.Succeeded() && report.WaitingCount() == 0 {
				return ErrRunFailed
			}

			return nil
		},
	}
}

func startRequest(command *cli.Command) (services.StartRequest, error) {
	req := services.StartRequest{Workflow: command.Args().First()}

	if raw := command.String("instance-id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, fmt.Errorf("invalid instance id: %w", err)
		}

		req.InstanceID = &id
	}

	if req.Workflow == "" && req.InstanceID == nil {
		return req, errors.New("a workflow name or --instance-id is required")
	}

	if command.IsSet("max-parallelism") {
		n := command.Int("max-parallelism")
		req.MaxParallelism = &n
	}

	if command.IsSet("fail-fast") {
		v := command.Bool("fail-fast")
		req.FailFast = &v
	}

	if command.IsSet("skip-dependents") {
		v := command.Bool("skip-dependents")
		req.SkipDependentsOnFailure = &v
	}

	return req, nil
}

func printReport(command *cli.Command, report *executor.Report[string]) error {
	out := struct {
		*executor.Report[string]

		Succeeded bool `json:"succeeded"`
	}{report, report.Succeeded()}

	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(out)
}
