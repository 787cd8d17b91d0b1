package graph_test

import (
	"testing"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigraph_AddVertex(t *testing.T) {
	t.Parallel()

	g := graph.New[string]()

	assert.True(t, g.AddVertex("a"))
	assert.False(t, g.AddVertex("a"))
	assert.True(t, g.ContainsVertex("a"))
	assert.Equal(t, 1, g.Len())
}

func TestDigraph_AddEdge(t *testing.T) {
	t.Parallel()

	g := graph.New[string]()
	g.AddVertex("a")
	g.AddVertex("b")

	added, err := g.AddEdge("a", "b")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = g.AddEdge("a", "b")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = g.AddEdge("a", "missing")
	require.ErrorIs(t, err, graph.ErrVertexNotFound)

	_, err = g.AddEdge("missing", "a")
	require.ErrorIs(t, err, graph.ErrVertexNotFound)

	assert.True(t, g.ContainsEdge("a", "b"))
	assert.False(t, g.ContainsEdge("b", "a"))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestDigraph_Adjacency(t *testing.T) {
	t.Parallel()

	g := graph.New[int]()
	for i := 1; i <= 4; i++ {
		g.AddVertex(i)
	}

	_, _ = g.AddEdge(1, 3)
	_, _ = g.AddEdge(2, 3)
	_, _ = g.AddEdge(3, 4)

	incoming, err := g.Incoming(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, incoming)

	outgoing, err := g.Outgoing(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{4}, outgoing)

	in, err := g.InDegree(3)
	require.NoError(t, err)
	assert.Equal(t, 2, in)

	out, err := g.OutDegree(1)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	_, err = g.Outgoing(9)
	require.ErrorIs(t, err, graph.ErrVertexNotFound)

	_, err = g.Incoming(9)
	require.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestDigraph_RemoveEdge(t *testing.T) {
	t.Parallel()

	g := graph.New[string]()
	g.AddVertex("a")
	g.AddVertex("b")
	_, _ = g.AddEdge("a", "b")

	assert.True(t, g.RemoveEdge("a", "b"))
	assert.False(t, g.RemoveEdge("a", "b"))
	assert.False(t, g.ContainsEdge("a", "b"))

	incoming, err := g.Incoming("b")
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestDigraph_RemoveVertexCascades(t *testing.T) {
	t.Parallel()

	g := graph.New[string]()
	for _, v := range []string{"a", "b", "c"} {
		g.AddVertex(v)
	}

	_, _ = g.AddEdge("a", "b")
	_, _ = g.AddEdge("b", "c")
	_, _ = g.AddEdge("b", "b")

	assert.True(t, g.RemoveVertex("b"))
	assert.False(t, g.RemoveVertex("b"))

	out, err := g.Outgoing("a")
	require.NoError(t, err)
	assert.Empty(t, out)

	in, err := g.Incoming("c")
	require.NoError(t, err)
	assert.Empty(t, in)

	assert.Equal(t, []string{"a", "c"}, g.Vertices())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestDigraph_CaseInsensitive(t *testing.T) {
	t.Parallel()

	g := graph.New(graph.WithEquality(graph.CaseInsensitive))

	assert.True(t, g.AddVertex("Build"))
	assert.False(t, g.AddVertex("BUILD"))
	assert.True(t, g.AddVertex("Test"))

	added, err := g.AddEdge("build", "test")
	require.NoError(t, err)
	assert.True(t, added)

	assert.True(t, g.ContainsEdge("BUILD", "TEST"))

	incoming, err := g.Incoming("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"Build"}, incoming)
}

func TestDigraph_ForEachEdge(t *testing.T) {
	t.Parallel()

	g := graph.New[string]()
	for _, v := range []string{"a", "b", "c"} {
		g.AddVertex(v)
	}

	_, _ = g.AddEdge("a", "b")
	_, _ = g.AddEdge("a", "c")

	var edges [][2]string

	g.ForEachEdge(func(from, to string) {
		edges = append(edges, [2]string{from, to})
	})

	assert.ElementsMatch(t, [][2]string{{"a", "b"}, {"a", "c"}}, edges)
}
