package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetContext(t *testing.T) {
	ectx := newTestContext()
	a, err := newSetContextAction(map[string]interface{}{"key": "foo", "value": "bar"})
	require.NoError(t, err)

	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "success", event)

	v, ok := ectx.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestSetContext_MissingKeyErrors(t *testing.T) {
	ectx := newTestContext()
	a, err := newSetContextAction(map[string]interface{}{"value": "bar"})
	require.NoError(t, err)

	event, err := a.Execute(bg, ectx)
	assert.Error(t, err)
	assert.Equal(t, "error", event)
}

func TestAddThenPopFromList(t *testing.T) {
	ectx := newTestContext()

	add, err := newAddToListAction(map[string]interface{}{"key": "queue", "value": "job-a"})
	require.NoError(t, err)
	_, err = add.Execute(bg, ectx)
	require.NoError(t, err)

	add2, err := newAddToListAction(map[string]interface{}{"key": "queue", "value": "job-b"})
	require.NoError(t, err)
	_, err = add2.Execute(bg, ectx)
	require.NoError(t, err)

	pop, err := newPopFromListAction(map[string]interface{}{"key": "queue", "store_as": "current"})
	require.NoError(t, err)
	event, err := pop.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "item_popped", event)

	current, _ := ectx.Get("current")
	assert.Equal(t, "job-a", current)

	remaining, _ := ectx.Get("queue")
	assert.Equal(t, []interface{}{"job-b"}, remaining)
}

func TestPopFromList_EmptyReportsListEmpty(t *testing.T) {
	ectx := newTestContext()
	pop, err := newPopFromListAction(map[string]interface{}{"key": "queue"})
	require.NoError(t, err)

	event, err := pop.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "list_empty", event)
}
