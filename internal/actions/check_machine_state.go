package actions

import (
	"context"
	"time"
)

func init() {
	Register("check_machine_state", newCheckMachineStateAction)
}

// checkMachineStateAction reads a peer machine's last state-change record
// from the append-only pipeline_results transition log and validates it
// against an allowed set of states, without opening a socket to the peer
// (spec §4.8 check_machine_state). Grounded on
// original_source/src/statemachine_engine/actions/builtin/check_machine_state_action.py's
// _get_current_state: latest row by machine, stale or missing data treated
// as "not running".
type checkMachineStateAction struct {
	config map[string]interface{}
}

func newCheckMachineStateAction(config map[string]interface{}) (Action, error) {
	return &checkMachineStateAction{config: config}, nil
}

func (a *checkMachineStateAction) Execute(ctx context.Context, ectx Context) (string, error) {
	target := stringField(a.config, "target_machine")
	if target == "" {
		return errorEvent(a.config, "error"), errMissingField("target_machine")
	}

	expected := stringListField(a.config, "expected_states")
	timeoutSeconds := intField(a.config, "timeout_seconds", 60)

	row, err := db.PipelineResults.Latest(target)
	if err != nil {
		setLastError(ectx, "check_machine_state", err.Error())
		return errorEvent(a.config, "error"), nil
	}
	if row == nil {
		return stringOr(a.config, "not_running", "not_running"), nil
	}

	if age := time.Since(row.CompletedAt); age > time.Duration(timeoutSeconds)*time.Second {
		return stringOr(a.config, "not_running", "not_running"), nil
	}

	state, _ := row.Metadata["state"].(string)

	for _, s := range expected {
		if s == state {
			ectx.Set(stringOr(a.config, "store_as", "machine_state"), state)
			return stringOr(a.config, "in_expected_state", "in_expected_state"), nil
		}
	}

	ectx.Set(stringOr(a.config, "store_as", "machine_state"), state)
	ectx.Set("unexpected_machine_state", state)
	return stringOr(a.config, "unexpected_state", "unexpected_state"), nil
}
