package actions

import (
	"context"
	"os"

	"statemachine-engine/pkg/models"
)

func init() {
	Register("update_machine_state", newUpdateMachineStateAction)
}

// updateMachineStateAction writes an out-of-band machine_state row, for
// FSMs that want to publish custom metadata (queue depth, current job
// type) alongside the state the engine already upserts on every
// transition. Supplemented: not in spec.md's minimum action set, but
// named in SPEC_FULL.md §4.8 so FSM authors can attach metadata without
// a dedicated store call.
type updateMachineStateAction struct {
	config map[string]interface{}
}

func newUpdateMachineStateAction(config map[string]interface{}) (Action, error) {
	return &updateMachineStateAction{config: config}, nil
}

func (a *updateMachineStateAction) Execute(ctx context.Context, ectx Context) (string, error) {
	machine := stringField(a.config, "machine_name")
	if machine == "" {
		if v, ok := ectx.Get("machine_name"); ok {
			machine, _ = v.(string)
		}
	}
	if machine == "" {
		return errorEvent(a.config, "error"), errMissingField("machine_name")
	}

	state := stringField(a.config, "state")
	if state == "" {
		if v, ok := ectx.Get("state"); ok {
			state, _ = v.(string)
		}
	}

	var metadata models.JSONBlob
	if m, ok := a.config["metadata"].(map[string]interface{}); ok {
		metadata = models.JSONBlob(m)
	}

	if err := db.MachineStates.Upsert(machine, state, os.Getpid(), metadata); err != nil {
		setLastError(ectx, "update_machine_state", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	// Mirror into pipeline_results too, so check_machine_state (which reads
	// the append-only transition log, not machine_state) sees an
	// out-of-band state update the same way it sees an engine-driven one.
	if err := db.PipelineResults.Append(nil, machine, state, "state_update"); err != nil {
		setLastError(ectx, "update_machine_state", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	return successEvent(a.config, "success"), nil
}
