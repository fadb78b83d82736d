package engine

import "sync"

// Context is the mutable, tree-shaped variant map threaded through every
// action invocation (spec §9 Design Notes: "context as a single mutable
// map passed through every action"). It is owned by exactly one engine
// goroutine at a time — the "one engine, one task" rule means no
// synchronization is required for correctness, but Snapshot still copies
// defensively so the interpolator never observes a half-written map from
// a concurrently running background drain (e.g. realtime event emission).
type Context struct {
	mu   sync.Mutex
	data map[string]interface{}
}

// NewContext returns an empty Context, optionally seeded from initial.
func NewContext(initial map[string]interface{}) *Context {
	if initial == nil {
		initial = map[string]interface{}{}
	}
	return &Context{data: initial}
}

// Get returns the top-level value for key.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Set writes a top-level key, overwriting any existing value.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Delete removes a top-level key.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Snapshot returns a shallow copy of the context tree, suitable as the
// interpolator's lookup table. Nested maps/lists retain identity with
// the live context (templates never mutate their own inputs), only the
// top-level map is copied so concurrent Set calls on unrelated keys
// can't race the interpolation pass.
func (c *Context) Snapshot() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}
