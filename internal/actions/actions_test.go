package actions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"statemachine-engine/internal/store"
)

// testContext is a minimal actions.Context for exercising built-ins
// without pulling in the engine package (which would import actions and
// create a cycle).
type testContext struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newTestContext() *testContext {
	return &testContext{data: map[string]interface{}{}}
}

func (c *testContext) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *testContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *testContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *testContext) Snapshot() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(&store.Config{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	Init(s, "actionstest")
	return s
}

var bg = context.Background()
