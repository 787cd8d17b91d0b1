package workflow_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type molecule struct {
	Name  string  `json:"name"`
	Atoms int     `json:"atoms"`
	Mass  float64 `json:"mass"`
}

func TestContext_SetGet(t *testing.T) {
	t.Parallel()

	c := workflow.NewContext()
	c.Set("count", 3)
	c.Set("mol", molecule{Name: "water", Atoms: 3})

	v, ok := c.Get("count")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	count, ok := workflow.Value[int](c, "count")
	require.True(t, ok)
	assert.Equal(t, 3, count)

	mol, ok := workflow.Value[molecule](c, "mol")
	require.True(t, ok)
	assert.Equal(t, "water", mol.Name)

	_, ok = workflow.Value[molecule](c, "count")
	assert.False(t, ok)

	_, ok = workflow.Value[int](c, "missing")
	assert.False(t, ok)

	assert.True(t, c.Contains("mol"))
	assert.Equal(t, []string{"count", "mol"}, c.Keys())
}

func TestContext_ExportRestore(t *testing.T) {
	t.Parallel()

	c := workflow.NewContext()
	c.Set("mol", molecule{Name: "benzene", Atoms: 12, Mass: 78.11})
	c.Set("flag", true)

	exported, err := c.Export()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"benzene","atoms":12,"mass":78.11}`, string(exported["mol"]))

	restored := workflow.NewContext()
	restored.Restore(exported)

	mol, ok := workflow.Value[molecule](restored, "mol")
	require.True(t, ok)
	assert.Equal(t, molecule{Name: "benzene", Atoms: 12, Mass: 78.11}, mol)

	var flag bool
	require.NoError(t, restored.Decode("flag", &flag))
	assert.True(t, flag)

	require.ErrorIs(t, restored.Decode("missing", &flag), workflow.ErrKeyNotFound)

	changes, err := restored.TakeChanges()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestContext_TakeChanges(t *testing.T) {
	t.Parallel()

	c := workflow.NewContext()
	c.Set("a", 1)
	c.Set("b", "two")

	changes, err := c.TakeChanges()
	require.NoError(t, err)
	assert.Equal(t, map[string]json.RawMessage{"a": json.RawMessage(`1`), "b": json.RawMessage(`"two"`)}, changes)

	changes, err = c.TakeChanges()
	require.NoError(t, err)
	assert.Empty(t, changes)

	c.Set("bad", make(chan int))

	_, err = c.TakeChanges()
	require.Error(t, err)
}

func TestContext_Signal(t *testing.T) {
	t.Parallel()

	c := workflow.NewContext()

	_, ok := c.Signal("approval")
	assert.False(t, ok)

	c.Set(workflow.SignalContextKey("approval"), json.RawMessage(`{"approved":true}`))

	payload, ok := c.Signal("approval")
	require.True(t, ok)
	assert.JSONEq(t, `{"approved":true}`, string(payload))
}

func TestContext_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	c := workflow.NewContext()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c.Set("shared", i)
			_, _ = c.Get("shared")
		}()
	}

	wg.Wait()

	assert.True(t, c.Contains("shared"))
}
