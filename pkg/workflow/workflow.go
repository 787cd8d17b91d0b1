// Package workflow provides the programmatic model of a workflow: nodes, the
// dependencies between them and the context they share while running.
package workflow

import (
	"fmt"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/dukex/taskgraph/pkg/models"
)

type Option[K comparable] func(*Workflow[K])

// WithEquality makes node ids equal when canon maps them to the same value.
func WithEquality[K comparable](canon func(K) K) Option[K] {
	return func(w *Workflow[K]) {
		w.canon = canon
	}
}

// Workflow pairs a node registry with the dependency graph between nodes.
// It must not be mutated while a run is using it.
type Workflow[K comparable] struct {
	name    string
	version string
	canon   func(K) K
	nodes   map[K]*Node[K]
	graph   *graph.Digraph[K]
}

func New[K comparable](name, version string, opts ...Option[K]) *Workflow[K] {
	w := &Workflow[K]{
		name:    name,
		version: version,
		canon:   func(k K) K { return k },
		nodes:   make(map[K]*Node[K]),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.graph = graph.New(graph.WithEquality(w.canon))

	return w
}

func (w *Workflow[K]) Name() string {
	return w.name
}

func (w *Workflow[K]) Version() string {
	return w.version
}

func (w *Workflow[K]) Definition() models.DefinitionRef {
	return models.DefinitionRef{Name: w.name, Version: w.version}
}

// AddNode registers node and adds its vertex to the dependency graph.
func (w *Workflow[K]) AddNode(node *Node[K]) error {
	if node == nil || node.Run == nil {
		return w.nodeErr("AddNode", node, ErrInvalidNode)
	}

	c := w.canon(node.ID)
	if _, exists := w.nodes[c]; exists {
		return &NodeError{Op: "AddNode", Workflow: w.name, NodeID: fmt.Sprint(node.ID), Err: ErrDuplicateNode}
	}

	w.nodes[c] = node
	w.graph.AddVertex(node.ID)

	return nil
}

// AddDependency declares that dependent cannot start before dependency resolves.
func (w *Workflow[K]) AddDependency(dependency, dependent K) error {
	for _, id := range []K{dependency, dependent} {
		if _, ok := w.nodes[w.canon(id)]; !ok {
			return &NodeError{Op: "AddDependency", Workflow: w.name, NodeID: fmt.Sprint(id), Err: ErrUnknownNode}
		}
	}

	_, err := w.graph.AddEdge(dependency, dependent)
	if err != nil {
		return fmt.Errorf("failed to add dependency %v -> %v: %w", dependency, dependent, err)
	}

	return nil
}

// MustAddNode is AddNode for statically built workflows; it panics on error.
func (w *Workflow[K]) MustAddNode(node *Node[K]) *Workflow[K] {
	if err := w.AddNode(node); err != nil {
		panic(err)
	}

	return w
}

// MustAddDependency is AddDependency for statically built workflows; it panics on error.
func (w *Workflow[K]) MustAddDependency(dependency, dependent K) *Workflow[K] {
	if err := w.AddDependency(dependency, dependent); err != nil {
		panic(err)
	}

	return w
}

func (w *Workflow[K]) Node(id K) (*Node[K], error) {
	node, ok := w.nodes[w.canon(id)]
	if !ok {
		return nil, &NodeError{Op: "Node", Workflow: w.name, NodeID: fmt.Sprint(id), Err: ErrUnknownNode}
	}

	return node, nil
}

// Nodes returns every node in the order it was added.
func (w *Workflow[K]) Nodes() []*Node[K] {
	ids := w.graph.Vertices()

	nodes := make([]*Node[K], 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, w.nodes[w.canon(id)])
	}

	return nodes
}

func (w *Workflow[K]) Len() int {
	return len(w.nodes)
}

// Graph exposes the dependency graph read-only.
func (w *Workflow[K]) Graph() graph.Reader[K] {
	return w.graph
}

// Dependencies returns the nodes id directly depends on.
func (w *Workflow[K]) Dependencies(id K) ([]K, error) {
	deps, err := w.graph.Incoming(id)
	if err != nil {
		return nil, &NodeError{Op: "Dependencies", Workflow: w.name, NodeID: fmt.Sprint(id), Err: ErrUnknownNode}
	}

	return deps, nil
}

// Dependents returns the nodes that directly depend on id.
func (w *Workflow[K]) Dependents(id K) ([]K, error) {
	deps, err := w.graph.Outgoing(id)
	if err != nil {
		return nil, &NodeError{Op: "Dependents", Workflow: w.name, NodeID: fmt.Sprint(id), Err: ErrUnknownNode}
	}

	return deps, nil
}

// Layers returns the topological layers of the workflow.
func (w *Workflow[K]) Layers() ([][]K, error) {
	return graph.Layers[K](w.graph)
}

func (w *Workflow[K]) nodeErr(op string, node *Node[K], err error) error {
	id := "<nil>"
	if node != nil {
		id = fmt.Sprint(node.ID)
	}

	return &NodeError{Op: op, Workflow: w.name, NodeID: id, Err: err}
}
