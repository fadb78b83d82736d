package actions

import "context"

func init() {
	Register("clear_events", newClearEventsAction)
}

// clearEventsAction marks stale pending machine_events rows processed
// without dispatching them, used on FSM startup to drop events queued
// for a machine that crashed mid-cycle (spec §4.8 clear_events).
type clearEventsAction struct {
	config map[string]interface{}
}

func newClearEventsAction(config map[string]interface{}) (Action, error) {
	return &clearEventsAction{config: config}, nil
}

func (a *clearEventsAction) Execute(ctx context.Context, ectx Context) (string, error) {
	target := stringField(a.config, "target_machine")
	if target == "" {
		if v, ok := ectx.Get("machine_name"); ok {
			target, _ = v.(string)
		}
	}
	if target == "" {
		return errorEvent(a.config, "error"), errMissingField("target_machine")
	}

	eventType := stringField(a.config, "event_type")
	n, err := db.MachineEvents.ClearPending(target, eventType)
	if err != nil {
		setLastError(ectx, "clear_events", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	ectx.Set(stringOr(a.config, "store_as", "cleared_count"), n)
	return successEvent(a.config, "success"), nil
}
