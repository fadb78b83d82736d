package actions

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"statemachine-engine/internal/ipc"
)

func init() {
	Register("send_event", newSendEventAction)
}

// sendEventAction delivers a message to a peer machine's control socket,
// falling back to a durable machine_events row (plus a wake_up datagram)
// when the socket is unavailable (spec §4.8 send_event). The payload
// config is already fully interpolated by the engine before Execute
// runs — including the "{event_data.payload}" whole-forward case, which
// the interpolator's full-match type-preservation rule resolves to the
// live map automatically (spec §4.2).
type sendEventAction struct {
	config map[string]interface{}
}

func newSendEventAction(config map[string]interface{}) (Action, error) {
	return &sendEventAction{config: config}, nil
}

func (a *sendEventAction) Execute(ctx context.Context, ectx Context) (string, error) {
	target := stringField(a.config, "target_machine")
	eventType := stringOr(a.config, "event_type", "generic_event")
	if target == "" {
		setLastError(ectx, "send_event", "target_machine is required")
		return errorEvent(a.config, "error"), nil
	}

	payload := a.config["payload"]
	if s, ok := payload.(string); ok {
		// Unresolved placeholder (e.g. event_data.payload missing): treat
		// as empty payload rather than forwarding the literal template.
		if s == "" || (len(s) > 0 && s[0] == '{') {
			payload = map[string]interface{}{}
		}
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	jobID := currentJobID(ectx)
	machineName, _ := ectx.Get("machine_name")
	machineNameStr, _ := machineName.(string)

	record := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	if jobID != "" {
		record["job_id"] = jobID
	}

	if err := ipc.Send(controlSocketPath(target), record); err == nil {
		return successEvent(a.config, "event_sent"), nil
	} else {
		zap.L().Debug("send_event socket path failed, falling back to store", zap.Error(err), zap.String("target", target))
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		setLastError(ectx, "send_event", "payload not JSON-serializable: "+err.Error())
		return errorEvent(a.config, "error"), nil
	}
	payloadStr := string(payloadJSON)

	var source *string
	if machineNameStr != "" {
		source = &machineNameStr
	}
	var jobIDPtr *string
	if jobID != "" {
		jobIDPtr = &jobID
	}

	if _, err := db.MachineEvents.Send(target, eventType, source, jobIDPtr, &payloadStr); err != nil {
		setLastError(ectx, "send_event", err.Error())
		return errorEvent(a.config, "error"), nil
	}

	if err := ipc.SendWakeup(controlSocketPath(target)); err != nil {
		zap.L().Debug("wake_up datagram failed, peer presumably not listening", zap.Error(err))
	}

	return successEvent(a.config, "event_sent"), nil
}

func currentJobID(ectx Context) string {
	if job, ok := currentJobMap(ectx); ok {
		if id, ok := job["id"].(string); ok {
			return id
		}
	}
	if id, ok := ectx.Get("id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
