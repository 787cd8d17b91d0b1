// Package config loads the taskgraph configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a taskgraph process. Command line flags and
// environment variables override values read from the file.
type Config struct {
	DatabaseURL             string        `validate:"required"                      yaml:"database_url"`
	EventBus                string        `validate:"oneof=gochannel kafka none"    yaml:"event_bus"`
	KafkaBrokers            []string      `validate:"required_if=EventBus kafka"    yaml:"kafka_brokers"`
	LogLevel                string        `validate:"oneof=debug info warn error"   yaml:"log_level"`
	LogFormat               string        `validate:"oneof=text json"               yaml:"log_format"`
	Port                    int           `validate:"min=1,max=65535"               yaml:"port"`
	OwnerID                 string        `yaml:"owner_id"`
	LeaseDuration           time.Duration `validate:"min=1s"                        yaml:"lease_duration"`
	MaxParallelism          int           `validate:"min=1"                         yaml:"max_parallelism"`
	FailFast                bool          `yaml:"fail_fast"`
	SkipDependentsOnFailure bool          `yaml:"skip_dependents_on_failure"`
	Schedules               []Schedule    `validate:"dive"                          yaml:"schedules"`
}

// Schedule starts a registered workflow on a cron expression.
type Schedule struct {
	Workflow string `validate:"required" yaml:"workflow"`
	Cron     string `validate:"required" yaml:"cron"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		DatabaseURL:             "file://./data",
		EventBus:                "gochannel",
		LogLevel:                "info",
		LogFormat:               "text",
		Port:                    9091,
		LeaseDuration:           time.Minute,
		MaxParallelism:          4,
		FailFast:                true,
		SkipDependentsOnFailure: true,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}

	return cfg, nil
}
