package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartFSM_SpawnsDetachedProcess(t *testing.T) {
	a, err := newStartFSMAction(map[string]interface{}{
		"binary":       "/bin/sh",
		"config":       "fsm.yaml",
		"machine_name": "spawned-worker",
	})
	require.NoError(t, err)

	ectx := newTestContext()
	event, err := a.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "fsm_started", event)

	pid, ok := ectx.Get("spawned_pid")
	require.True(t, ok)
	assert.Greater(t, pid, 0)
}

func TestStartFSM_MissingConfigErrors(t *testing.T) {
	a, err := newStartFSMAction(map[string]interface{}{"machine_name": "worker"})
	require.NoError(t, err)

	event, err := a.Execute(bg, newTestContext())
	assert.Error(t, err)
	assert.Equal(t, "error", event)
}
