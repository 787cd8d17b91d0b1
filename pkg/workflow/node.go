package workflow

import (
	"context"
	"errors"
)

// Result is what a node reports when its run function returns normally.
type Result int

const (
	Success Result = iota
	Failure
	WaitingForInput
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case WaitingForInput:
		return "waiting-for-input"
	default:
		return "unknown"
	}
}

// NodeFunc is the body of a node. A non-nil error is a fault and fails the
// node, unless it wraps context.Canceled or context.DeadlineExceeded in which
// case the node is canceled. Implementations must watch ctx and return promptly
// once it is done.
type NodeFunc func(ctx context.Context, wctx *Context) (Result, error)

// Node binds an id to the work it performs. A node is immutable once added to
// a workflow.
type Node[K comparable] struct {
	ID          K
	Run         NodeFunc
	SignalKey   string
	Description string
}

type NodeOption func(*nodeOptions)

type nodeOptions struct {
	signalKey   string
	description string
}

// WithSignalKey sets the name of the signal that releases the node while it
// waits for input. By default a node waits on its own encoded id.
func WithSignalKey(key string) NodeOption {
	return func(o *nodeOptions) {
		o.signalKey = key
	}
}

func WithDescription(description string) NodeOption {
	return func(o *nodeOptions) {
		o.description = description
	}
}

func NewNode[K comparable](id K, run NodeFunc, opts ...NodeOption) *Node[K] {
	var o nodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Node[K]{
		ID:          id,
		Run:         run,
		SignalKey:   o.signalKey,
		Description: o.description,
	}
}

// FromFunc adapts a plain function; returning nil means success.
func FromFunc(fn func(ctx context.Context, wctx *Context) error) NodeFunc {
	return func(ctx context.Context, wctx *Context) (Result, error) {
		err := fn(ctx, wctx)
		if err != nil {
			return Failure, err
		}

		return Success, nil
	}
}

// Outcome is the result shape of simple pass/fail tasks.
type Outcome struct {
	OK      bool
	Message string
}

// FromOutcome adapts a task that reports an Outcome. A failed outcome fails the
// node with its message.
func FromOutcome(fn func(ctx context.Context, wctx *Context) (Outcome, error)) NodeFunc {
	return func(ctx context.Context, wctx *Context) (Result, error) {
		outcome, err := fn(ctx, wctx)
		if err != nil {
			return Failure, err
		}

		if !outcome.OK {
			msg := outcome.Message
			if msg == "" {
				msg = "task reported failure"
			}

			return Failure, errors.New(msg)
		}

		return Success, nil
	}
}
