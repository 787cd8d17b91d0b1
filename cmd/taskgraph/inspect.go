package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the materialised state of an instance",
		ArgsUsage: "<instance-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := instanceArg(command)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, command, "inspect", false)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			state, err := a.runs.Instance(ctx, id)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(state)
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Print the event log of an instance, one JSON document per line",
		ArgsUsage: "<instance-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := instanceArg(command)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, command, "events", false)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			events, err := a.runs.Events(ctx, id)
			if err != nil {
				return err
			}

			var out strings.Builder

			for _, ev := range events {
				line, err := models.MarshalEvent(ev)
				if err != nil {
					return err
				}

				out.Write(line)
				out.WriteByte('\n')
			}

			_, err = fmt.Fprint(command.Root().Writer, out.String())

			return err
		},
	}
}

func instanceArg(command *cli.Command) (uuid.UUID, error) {
	raw := command.Args().First()
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s requires an instance id", command.Name)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid instance id: %w", err)
	}

	return id, nil
}
