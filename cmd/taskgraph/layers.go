package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/taskgraph/pkg/cmd"
	"github.com/dukex/taskgraph/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func layersCommand() *cli.Command {
	return &cli.Command{
		Name:      "layers",
		Usage:     "Print the topological layers of a built-in workflow",
		ArgsUsage: "<workflow>",
		Action: func(_ context.Context, command *cli.Command) error {
			name := command.Args().First()
			if name == "" {
				return fmt.Errorf("layers requires a workflow name")
			}

			reg, err := cmd.NewRegistry(log.WithModule("layers"))
			if err != nil {
				return err
			}

			wf, err := reg.Build(name)
			if err != nil {
				return err
			}

			layers, err := wf.Layers()
			if err != nil {
				return err
			}

			w := command.Root().Writer
			fmt.Fprintf(w, "%s v%s\n", wf.Name(), wf.Version())

			for i, layer := range layers {
				fmt.Fprintf(w, "%d: %s\n", i, strings.Join(layer, ", "))
			}

			return nil
		},
	}
}
