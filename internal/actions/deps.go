package actions

import (
	"statemachine-engine/internal/ipc"
	"statemachine-engine/internal/store"
)

// Shared process-wide singletons the built-in actions call into: the
// Store and the socket namespace prefix used to compute peer control-
// socket paths. Per spec §9 Design Notes ("global singletons for the
// Store and its repositories... lazy-initialized, held for process
// lifetime"), these are set once by engine.New at startup and read by
// every action invocation afterward; no action owns a private
// connection.
var (
	db           *store.Store
	socketPrefix string
)

// Init wires the Store and socket prefix the built-in actions depend on.
// Must be called once before the engine starts dispatching events.
func Init(s *store.Store, prefix string) {
	db = s
	socketPrefix = prefix
}

func controlSocketPath(machine string) string {
	return ipc.DefaultControlPath(socketPrefix, machine)
}
