package workflow

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

const signalPrefix = "signal:"

// SignalContextKey is the context key under which the payload of a consumed
// signal is stored before the waiting node runs again.
func SignalContextKey(signal string) string {
	return signalPrefix + signal
}

// Context is the key/value store shared by every node of one run. The map is
// guarded so concurrent nodes cannot corrupt it, but two nodes writing the same
// key still race and the last write wins.
//
// Values are either Go values set by nodes or raw JSON restored from a
// snapshot; raw values are decoded lazily into whatever type the reader asks for.
type Context struct {
	mu      sync.RWMutex
	values  map[string]any
	changed map[string]struct{}
}

func NewContext() *Context {
	return &Context{
		values:  make(map[string]any),
		changed: make(map[string]struct{}),
	}
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
	c.changed[key] = struct{}{}
}

// Get returns the stored value as is, which is a json.RawMessage for values
// restored from persistence.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]

	return v, ok
}

func (c *Context) Contains(key string) bool {
	_, ok := c.Get(key)

	return ok
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.values))
}

// Decode stores the value of key into target, converting through JSON when the
// stored value is not already of the target type.
func (c *Context) Decode(key string, target any) error {
	v, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	raw, isRaw := v.(json.RawMessage)
	if !isRaw {
		var err error

		raw, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode context value %s: %w", key, err)
		}
	}

	err := json.Unmarshal(raw, target)
	if err != nil {
		return fmt.Errorf("failed to decode context value %s: %w", key, err)
	}

	return nil
}

// Value returns the value of key as T. It reports false when the key is absent
// or the value cannot be represented as T.
func Value[T any](c *Context, key string) (T, bool) {
	var zero T

	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	if typed, ok := v.(T); ok {
		return typed, true
	}

	var out T
	if err := c.Decode(key, &out); err != nil {
		return zero, false
	}

	return out, true
}

// Signal returns the payload of the last consumed signal named key.
func (c *Context) Signal(key string) (json.RawMessage, bool) {
	v, ok := c.Get(SignalContextKey(key))
	if !ok {
		return nil, false
	}

	raw, ok := v.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}

		raw = data
	}

	return raw, true
}

// Export encodes every value to JSON.
func (c *Context) Export() (map[string]json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(c.values))
	for k, v := range c.values {
		raw, err := encode(v)
		if err != nil {
			return nil, fmt.Errorf("failed to export context value %s: %w", k, err)
		}

		out[k] = raw
	}

	return out, nil
}

// Restore replaces the content of the context with values read from a
// snapshot. Restored values are not reported by TakeChanges.
func (c *Context) Restore(values map[string]json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = make(map[string]any, len(values))
	for k, v := range values {
		c.values[k] = v
	}

	c.changed = make(map[string]struct{})
}

// TakeChanges returns the values set since the previous call, encoded to JSON,
// and forgets them.
func (c *Context) TakeChanges() (map[string]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.changed) == 0 {
		return nil, nil
	}

	out := make(map[string]json.RawMessage, len(c.changed))

	var err error

	for k := range c.changed {
		raw, encErr := encode(c.values[k])
		if encErr != nil {
			err = fmt.Errorf("failed to encode context value %s: %w", k, encErr)

			continue
		}

		out[k] = raw
	}

	c.changed = make(map[string]struct{})

	return out, err
}

func encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}

	return json.Marshal(v)
}
