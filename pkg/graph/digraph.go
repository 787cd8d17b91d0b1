// Package graph provides a generic directed graph keyed by a comparable type
// together with the topology algorithms the scheduler relies on.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVertexNotFound is returned when an operation references a vertex the graph does not contain.
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrCycleDetected is returned by Layers when the graph is not acyclic.
	ErrCycleDetected = errors.New("graph contains a cycle")
)

// Reader is the read-only query surface of a graph. Topology algorithms only
// depend on this interface.
type Reader[K comparable] interface {
	Vertices() []K
	Len() int
	ContainsVertex(key K) bool
	ContainsEdge(from, to K) bool
	Outgoing(key K) ([]K, error)
	Incoming(key K) ([]K, error)
	InDegree(key K) (int, error)
	OutDegree(key K) (int, error)
}

// Option configures a Digraph.
type Option[K comparable] func(*Digraph[K])

// WithEquality makes two keys equal when canon maps them to the same value.
// canon must be deterministic.
func WithEquality[K comparable](canon func(K) K) Option[K] {
	return func(g *Digraph[K]) {
		if canon != nil {
			g.canon = canon
		}
	}
}

// CaseInsensitive is a canonicalisation for string keys that ignores case.
func CaseInsensitive(key string) string {
	return strings.ToLower(key)
}

type set[K comparable] map[K]struct{}

// Digraph is a mutable directed graph. It keeps forward and reverse adjacency
// so that degree queries do not scan the edge set. It is not safe for
// concurrent mutation; concurrent reads are fine once construction is done.
type Digraph[K comparable] struct {
	canon func(K) K
	keys  map[K]K // canonical -> key as first added
	order []K     // canonical keys in insertion order
	out   map[K]set[K]
	in    map[K]set[K]
	edges int
}

// New creates an empty graph.
func New[K comparable](opts ...Option[K]) *Digraph[K] {
	g := &Digraph[K]{
		canon: func(k K) K { return k },
		keys:  make(map[K]K),
		out:   make(map[K]set[K]),
		in:    make(map[K]set[K]),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// AddVertex adds key to the graph. It returns false if an equal key is already present.
func (g *Digraph[K]) AddVertex(key K) bool {
	c := g.canon(key)
	if _, ok := g.keys[c]; ok {
		return false
	}

	g.keys[c] = key
	g.order = append(g.order, c)
	g.out[c] = make(set[K])
	g.in[c] = make(set[K])

	return true
}

// AddEdge adds the edge from -> to. Both vertices must exist. It returns false
// when the edge is already present.
func (g *Digraph[K]) AddEdge(from, to K) (bool, error) {
	cf, err := g.lookup(from)
	if err != nil {
		return false, err
	}

	ct, err := g.lookup(to)
	if err != nil {
		return false, err
	}

	if _, ok := g.out[cf][ct]; ok {
		return false, nil
	}

	g.out[cf][ct] = struct{}{}
	g.in[ct][cf] = struct{}{}
	g.edges++

	return true, nil
}

// RemoveEdge removes the edge from -> to and reports whether it existed.
func (g *Digraph[K]) RemoveEdge(from, to K) bool {
	cf, ct := g.canon(from), g.canon(to)

	targets, ok := g.out[cf]
	if !ok {
		return false
	}

	if _, ok := targets[ct]; !ok {
		return false
	}

	delete(targets, ct)
	delete(g.in[ct], cf)
	g.edges--

	return true
}

// RemoveVertex removes key and every edge touching it.
func (g *Digraph[K]) RemoveVertex(key K) bool {
	c := g.canon(key)
	if _, ok := g.keys[c]; !ok {
		return false
	}

	for target := range g.out[c] {
		delete(g.in[target], c)
		g.edges--
	}

	for source := range g.in[c] {
		if source == c {
			continue
		}

		delete(g.out[source], c)
		g.edges--
	}

	delete(g.out, c)
	delete(g.in, c)
	delete(g.keys, c)

	for i, k := range g.order {
		if k == c {
			g.order = append(g.order[:i], g.order[i+1:]...)

			break
		}
	}

	return true
}

// ContainsVertex reports whether key is a vertex of the graph.
func (g *Digraph[K]) ContainsVertex(key K) bool {
	_, ok := g.keys[g.canon(key)]

	return ok
}

// ContainsEdge reports whether the edge from -> to exists.
func (g *Digraph[K]) ContainsEdge(from, to K) bool {
	targets, ok := g.out[g.canon(from)]
	if !ok {
		return false
	}

	_, ok = targets[g.canon(to)]

	return ok
}

// Outgoing returns the direct successors of key, in no particular order.
func (g *Digraph[K]) Outgoing(key K) ([]K, error) {
	c, err := g.lookup(key)
	if err != nil {
		return nil, err
	}

	return g.originals(g.out[c]), nil
}

// Incoming returns the direct predecessors of key, in no particular order.
func (g *Digraph[K]) Incoming(key K) ([]K, error) {
	c, err := g.lookup(key)
	if err != nil {
		return nil, err
	}

	return g.originals(g.in[c]), nil
}

// InDegree returns the number of edges pointing at key.
func (g *Digraph[K]) InDegree(key K) (int, error) {
	c, err := g.lookup(key)
	if err != nil {
		return 0, err
	}

	return len(g.in[c]), nil
}

// OutDegree returns the number of edges leaving key.
func (g *Digraph[K]) OutDegree(key K) (int, error) {
	c, err := g.lookup(key)
	if err != nil {
		return 0, err
	}

	return len(g.out[c]), nil
}

// Vertices returns every vertex in insertion order.
func (g *Digraph[K]) Vertices() []K {
	vertices := make([]K, 0, len(g.order))
	for _, c := range g.order {
		vertices = append(vertices, g.keys[c])
	}

	return vertices
}

// Len returns the number of vertices.
func (g *Digraph[K]) Len() int {
	return len(g.order)
}

// EdgeCount returns the number of edges.
func (g *Digraph[K]) EdgeCount() int {
	return g.edges
}

// ForEachEdge calls fn for every edge. Iteration order follows vertex insertion
// order for the source vertex.
func (g *Digraph[K]) ForEachEdge(fn func(from, to K)) {
	for _, c := range g.order {
		for target := range g.out[c] {
			fn(g.keys[c], g.keys[target])
		}
	}
}

func (g *Digraph[K]) lookup(key K) (K, error) {
	c := g.canon(key)
	if _, ok := g.keys[c]; !ok {
		return c, fmt.Errorf("%w: %v", ErrVertexNotFound, key)
	}

	return c, nil
}

func (g *Digraph[K]) originals(s set[K]) []K {
	keys := make([]K, 0, len(s))
	for c := range s {
		keys = append(keys, g.keys[c])
	}

	return keys
}
