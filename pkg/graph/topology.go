package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a cycle found while ordering a graph.
type CycleError[K comparable] struct {
	Cycle []K
}

func (e *CycleError[K]) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCycleDetected.Error()
	}

	parts := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		parts[i] = fmt.Sprint(k)
	}

	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(parts, " -> "))
}

func (e *CycleError[K]) Is(target error) bool {
	return target == ErrCycleDetected
}

// Layers groups the vertices of g into topological layers using Kahn's
// algorithm. Every vertex of a layer only depends on vertices of earlier
// layers. The order inside a layer is not meaningful. A cyclic graph yields a
// *CycleError and no layers.
func Layers[K comparable](g Reader[K]) ([][]K, error) {
	vertices := g.Vertices()
	remaining := make(map[K]int, len(vertices))

	var frontier []K

	for _, v := range vertices {
		degree, err := g.InDegree(v)
		if err != nil {
			return nil, err
		}

		remaining[v] = degree
		if degree == 0 {
			frontier = append(frontier, v)
		}
	}

	var layers [][]K

	processed := 0

	for len(frontier) > 0 {
		layers = append(layers, frontier)
		processed += len(frontier)

		var next []K

		for _, v := range frontier {
			successors, err := g.Outgoing(v)
			if err != nil {
				return nil, err
			}

			for _, s := range successors {
				remaining[s]--
				if remaining[s] == 0 {
					next = append(next, s)
				}
			}
		}

		frontier = next
	}

	if processed != len(vertices) {
		cycle, _ := FindCycle(g)

		return nil, &CycleError[K]{Cycle: cycle}
	}

	return layers, nil
}

type color uint8

const (
	white color = iota
	gray
	black
)

type frame[K comparable] struct {
	vertex     K
	successors []K
	next       int
}

// FindCycle searches g for a cycle with a three-colour depth first search.
// When one exists it returns the vertices along it with the first vertex
// repeated at the end, so the first and last elements are equal.
func FindCycle[K comparable](g Reader[K]) ([]K, bool) {
	colors := make(map[K]color, g.Len())

	for _, root := range g.Vertices() {
		if colors[root] != white {
			continue
		}

		if cycle := visit(g, root, colors); cycle != nil {
			return cycle, true
		}
	}

	return nil, false
}

func visit[K comparable](g Reader[K], root K, colors map[K]color) []K {
	successors, _ := g.Outgoing(root)
	colors[root] = gray
	stack := []*frame[K]{{vertex: root, successors: successors}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next == len(top.successors) {
			colors[top.vertex] = black
			stack = stack[:len(stack)-1]

			continue
		}

		child := top.successors[top.next]
		top.next++

		switch colors[child] {
		case gray:
			return cyclePath(stack, child)
		case white:
			next, _ := g.Outgoing(child)
			colors[child] = gray
			stack = append(stack, &frame[K]{vertex: child, successors: next})
		case black:
		}
	}

	return nil
}

// cyclePath walks the DFS stack from the top back to child, then reverses the
// walk and closes it with child.
func cyclePath[K comparable](stack []*frame[K], child K) []K {
	var path []K

	for i := len(stack) - 1; i >= 0; i-- {
		path = append(path, stack[i].vertex)
		if stack[i].vertex == child {
			break
		}
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return append(path, child)
}
