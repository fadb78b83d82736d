package actions

import "context"

func init() {
	Register("add_to_list", newAddToListAction)
}

// addToListAction appends a value onto a context list, creating it if
// absent (spec §4.8 add_to_list) — used to accumulate spawned job ids
// for a later wait_for_jobs).
type addToListAction struct {
	config map[string]interface{}
}

func newAddToListAction(config map[string]interface{}) (Action, error) {
	return &addToListAction{config: config}, nil
}

func (a *addToListAction) Execute(ctx context.Context, ectx Context) (string, error) {
	key := stringField(a.config, "key")
	if key == "" {
		return errorEvent(a.config, "error"), errMissingField("key")
	}

	existing, _ := ectx.Get(key)
	list, _ := existing.([]interface{})
	list = append(list, a.config["value"])
	ectx.Set(key, list)

	return successEvent(a.config, "success"), nil
}
