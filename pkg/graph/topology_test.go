package graph_test

import (
	"fmt"
	"testing"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, vertices []string, edges [][2]string) *graph.Digraph[string] {
	t.Helper()

	g := graph.New[string]()
	for _, v := range vertices {
		g.AddVertex(v)
	}

	for _, e := range edges {
		_, err := g.AddEdge(e[0], e[1])
		require.NoError(t, err)
	}

	return g
}

func TestLayers(t *testing.T) {
	t.Parallel()

	g := build(t,
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "C"}, {"B", "C"}, {"C", "D"}, {"C", "E"}},
	)

	layers, err := graph.Layers[string](g)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.ElementsMatch(t, []string{"A", "B"}, layers[0])
	assert.ElementsMatch(t, []string{"C"}, layers[1])
	assert.ElementsMatch(t, []string{"D", "E"}, layers[2])
}

func TestLayers_Empty(t *testing.T) {
	t.Parallel()

	layers, err := graph.Layers[string](graph.New[string]())
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestLayers_Cycle(t *testing.T) {
	t.Parallel()

	g := build(t,
		[]string{"1", "2", "3", "4"},
		[][2]string{{"4", "1"}, {"1", "2"}, {"2", "3"}, {"3", "1"}},
	)

	layers, err := graph.Layers[string](g)
	require.ErrorIs(t, err, graph.ErrCycleDetected)
	assert.Nil(t, layers)

	var cycleErr *graph.CycleError[string]
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1])
}

func TestFindCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		vertices  []string
		edges     [][2]string
		found     bool
		minLength int
		members   []string
	}{
		{
			name:      "three node cycle",
			vertices:  []string{"1", "2", "3"},
			edges:     [][2]string{{"1", "2"}, {"2", "3"}, {"3", "1"}},
			found:     true,
			minLength: 4,
			members:   []string{"1", "2", "3"},
		},
		{
			name:      "self loop",
			vertices:  []string{"a"},
			edges:     [][2]string{{"a", "a"}},
			found:     true,
			minLength: 2,
			members:   []string{"a"},
		},
		{
			name:      "cycle behind a tail",
			vertices:  []string{"root", "x", "y"},
			edges:     [][2]string{{"root", "x"}, {"x", "y"}, {"y", "x"}},
			found:     true,
			minLength: 3,
			members:   []string{"x", "y"},
		},
		{
			name:     "diamond",
			vertices: []string{"a", "b", "c", "d"},
			edges:    [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			found:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := build(t, tt.vertices, tt.edges)

			cycle, found := graph.FindCycle[string](g)
			assert.Equal(t, tt.found, found)

			if !tt.found {
				assert.Empty(t, cycle)

				return
			}

			assert.GreaterOrEqual(t, len(cycle), tt.minLength)
			assert.Equal(t, cycle[0], cycle[len(cycle)-1])
			assert.ElementsMatch(t, tt.members, cycle[:len(cycle)-1])

			for i := 0; i < len(cycle)-1; i++ {
				assert.True(t, g.ContainsEdge(cycle[i], cycle[i+1]), "edge %s -> %s", cycle[i], cycle[i+1])
			}
		})
	}
}

func TestFindCycle_LongChainDoesNotRecurse(t *testing.T) {
	t.Parallel()

	const n = 100_000

	g := graph.New[int]()
	for i := 0; i < n; i++ {
		g.AddVertex(i)
	}

	for i := 0; i < n-1; i++ {
		_, err := g.AddEdge(i, i+1)
		require.NoError(t, err)
	}

	_, found := graph.FindCycle[int](g)
	assert.False(t, found)

	_, err := g.AddEdge(n-1, 0)
	require.NoError(t, err)

	cycle, found := graph.FindCycle[int](g)
	require.True(t, found)
	assert.Len(t, cycle, n+1)
}

func ExampleLayers() {
	g := graph.New[string]()
	for _, v := range []string{"fetch", "build", "ship"} {
		g.AddVertex(v)
	}

	_, _ = g.AddEdge("fetch", "build")
	_, _ = g.AddEdge("build", "ship")

	layers, _ := graph.Layers[string](g)
	fmt.Println(layers)
	// Output: [[fetch] [build] [ship]]
}
