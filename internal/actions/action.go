// Package actions implements the Action Registry (C3), the Action
// Contract (C4), and the built-in action pack (C8). Dynamic discovery
// (the Python ActionLoader's filesystem scan) is replaced by a
// compile-time registry per spec §9 Design Notes, grounded on
// _examples/spencerandtheteagues-apex-build-platform/backend/internal/execution/runner.go's
// RegisterRunner/GetRunner + alias-map pattern.
package actions

import "context"

// Context is the subset of the engine's mutable context map an action
// needs: read, write, delete top-level keys, and take a flattened
// snapshot for templating. engine.Context satisfies this interface
// structurally, so this package never imports internal/engine.
type Context interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
	Snapshot() map[string]interface{}
}

// Action is the contract every pluggable action type implements (spec
// §4.4). Execute may mutate ctx freely and returns an event name (empty
// string means "no event, stay in current state") or an error, which the
// engine funnels into an `error` event at its single dispatch site.
type Action interface {
	Execute(ctx context.Context, ectx Context) (event string, err error)
}

// Factory constructs an Action from its interpolated config.
type Factory func(config map[string]interface{}) (Action, error)

var registry = map[string]Factory{}

var aliases = map[string]string{
	"activity_log": "log",
}

// Register adds a Factory under actionType. A later call for the same
// type string wins — this is how a user-supplied action package can
// override a built-in: import it for side effects before engine.Run and
// let its init() re-register the name.
func Register(actionType string, f Factory) {
	registry[actionType] = f
}

// Alias resolves a legacy type tag to its real one (e.g. "activity_log"
// -> "log"), or returns actionType unchanged if it has no alias. Exported
// so the engine can apply it before checking its own intrinsic types
// ("log"/"sleep" never go through the registry).
func Alias(actionType string) string {
	if real, ok := aliases[actionType]; ok {
		return real
	}
	return actionType
}

// Get resolves actionType (after alias translation) to its Factory.
func Get(actionType string) (Factory, bool) {
	f, ok := registry[Alias(actionType)]
	return f, ok
}
