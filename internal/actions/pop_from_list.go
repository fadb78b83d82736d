package actions

import "context"

func init() {
	Register("pop_from_list", newPopFromListAction)
}

// popFromListAction removes and returns the first element of a context
// list (spec §4.8 pop_from_list), signalling list_empty rather than
// erroring when there is nothing left to process.
type popFromListAction struct {
	config map[string]interface{}
}

func newPopFromListAction(config map[string]interface{}) (Action, error) {
	return &popFromListAction{config: config}, nil
}

func (a *popFromListAction) Execute(ctx context.Context, ectx Context) (string, error) {
	key := stringField(a.config, "key")
	if key == "" {
		return errorEvent(a.config, "error"), errMissingField("key")
	}

	existing, _ := ectx.Get(key)
	list, _ := existing.([]interface{})
	if len(list) == 0 {
		return stringOr(a.config, "empty", "list_empty"), nil
	}

	item := list[0]
	ectx.Set(key, list[1:])
	ectx.Set(stringOr(a.config, "store_as", "popped_item"), item)

	return successEvent(a.config, "item_popped"), nil
}
