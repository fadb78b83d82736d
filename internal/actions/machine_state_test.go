package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateThenCheckMachineState(t *testing.T) {
	newTestStore(t)

	update, err := newUpdateMachineStateAction(map[string]interface{}{
		"machine_name": "worker-1",
		"state":        "processing",
	})
	require.NoError(t, err)
	event, err := update.Execute(bg, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "success", event)

	check, err := newCheckMachineStateAction(map[string]interface{}{
		"target_machine":  "worker-1",
		"expected_states": []interface{}{"processing", "done"},
	})
	require.NoError(t, err)
	ectx := newTestContext()
	event, err = check.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "in_expected_state", event)

	state, _ := ectx.Get("machine_state")
	assert.Equal(t, "processing", state)
}

func TestCheckMachineState_UnexpectedState(t *testing.T) {
	newTestStore(t)

	update, err := newUpdateMachineStateAction(map[string]interface{}{
		"machine_name": "worker-2",
		"state":        "errored",
	})
	require.NoError(t, err)
	_, err = update.Execute(bg, newTestContext())
	require.NoError(t, err)

	check, err := newCheckMachineStateAction(map[string]interface{}{
		"target_machine":  "worker-2",
		"expected_states": []interface{}{"processing", "done"},
	})
	require.NoError(t, err)
	ectx := newTestContext()
	event, err := check.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "unexpected_state", event)

	unexpected, _ := ectx.Get("unexpected_machine_state")
	assert.Equal(t, "errored", unexpected)
}

func TestCheckMachineState_UnknownMachineReportsNotRunning(t *testing.T) {
	newTestStore(t)

	check, err := newCheckMachineStateAction(map[string]interface{}{"target_machine": "ghost"})
	require.NoError(t, err)
	event, err := check.Execute(bg, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "not_running", event)
}

func TestCheckMachineState_StaleStateReportsNotRunning(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PipelineResults.Append(nil, "worker-3", "processing", "state_update"))

	check, err := newCheckMachineStateAction(map[string]interface{}{
		"target_machine":  "worker-3",
		"expected_states": []interface{}{"processing"},
		"timeout_seconds": 0,
	})
	require.NoError(t, err)
	event, err := check.Execute(bg, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "not_running", event)
}

func TestClearEvents(t *testing.T) {
	s := newTestStore(t)
	_, err := s.MachineEvents.Send("worker-1", "job_assigned", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.MachineEvents.Send("worker-1", "job_assigned", nil, nil, nil)
	require.NoError(t, err)

	clear, err := newClearEventsAction(map[string]interface{}{"target_machine": "worker-1"})
	require.NoError(t, err)

	ectx := newTestContext()
	event, err := clear.Execute(bg, ectx)
	require.NoError(t, err)
	assert.Equal(t, "success", event)

	count, _ := ectx.Get("cleared_count")
	assert.EqualValues(t, 2, count)

	pending, err := s.MachineEvents.Pending("worker-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
