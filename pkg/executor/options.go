package executor

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLeaseDuration is how long a running node is claimed before another
// executor may recover it.
const DefaultLeaseDuration = time.Minute

// Options tune a single run.
type Options struct {
	MaxParallelism          int  `json:"maxParallelism"          validate:"min=1"   yaml:"max_parallelism"`
	FailFast                bool `json:"failFast"                yaml:"fail_fast"`
	SkipDependentsOnFailure bool `json:"skipDependentsOnFailure" yaml:"skip_dependents_on_failure"`
}

// DefaultOptions runs one node per CPU, stops at the first failure and skips
// the dependents of failed nodes.
func DefaultOptions() Options {
	return Options{
		MaxParallelism:          runtime.NumCPU(),
		FailFast:                true,
		SkipDependentsOnFailure: true,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (o Options) Validate() error {
	err := validate.Struct(o)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return nil
}

// RunParams identify the instance a run drives. A nil InstanceID starts a new
// instance; a nil Definition records the workflow's own name and version.
type RunParams struct {
	InstanceID *uuid.UUID
	Definition *models.DefinitionRef
}

type Option[K comparable] func(*Executor[K])

// WithStore makes runs durable. Without a store the executor keeps state in memory only.
func WithStore[K comparable](store persistence.Store) Option[K] {
	return func(e *Executor[K]) {
		e.store = store
	}
}

func WithKeyCodec[K comparable](codec persistence.KeyCodec[K]) Option[K] {
	return func(e *Executor[K]) {
		e.codec = codec
	}
}

func WithLogger[K comparable](logger *slog.Logger) Option[K] {
	return func(e *Executor[K]) {
		e.logger = logger
	}
}

func WithTracer[K comparable](tracer trace.Tracer) Option[K] {
	return func(e *Executor[K]) {
		e.tracer = tracer
	}
}

// WithOwnerID sets the identity written into node leases. It defaults to the
// host name.
func WithOwnerID[K comparable](owner string) Option[K] {
	return func(e *Executor[K]) {
		e.owner = owner
	}
}

func WithLeaseDuration[K comparable](d time.Duration) Option[K] {
	return func(e *Executor[K]) {
		e.leaseDuration = d
	}
}

func WithClock[K comparable](now func() time.Time) Option[K] {
	return func(e *Executor[K]) {
		e.now = now
	}
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}

	return host
}
