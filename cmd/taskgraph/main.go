// Package main provides the taskgraph command line.
package main

import (
	"context"
	"os"

	"github.com/dukex/taskgraph/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("taskgraph")

	command := &cli.Command{
		Name:                  "taskgraph",
		Usage:                 "Run durable dependency-ordered workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "taskgraph.yaml",
				Sources: cli.EnvVars("TASKGRAPH_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store URL (file://dir, postgres://..., redis://...)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka, none)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "owner-id",
				Usage:   "Identity written into node leases (defaults to the host name)",
				Sources: cli.EnvVars("OWNER_ID"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			inspectCommand(),
			eventsCommand(),
			layersCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
