package actions

import "context"

func init() {
	Register("set_context", newSetContextAction)
}

// setContextAction writes a literal or already-interpolated value into
// the shared context under a configured key (spec §4.8 set_context).
type setContextAction struct {
	config map[string]interface{}
}

func newSetContextAction(config map[string]interface{}) (Action, error) {
	return &setContextAction{config: config}, nil
}

func (a *setContextAction) Execute(ctx context.Context, ectx Context) (string, error) {
	key := stringField(a.config, "key")
	if key == "" {
		return errorEvent(a.config, "error"), errMissingField("key")
	}
	ectx.Set(key, a.config["value"])
	return successEvent(a.config, "success"), nil
}
