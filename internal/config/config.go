// Package config holds the small set of process-environment helpers
// shared by cmd/statemachine and cmd/smmigrate: .env loading and typed
// os.Getenv lookups. Relocated from the teacher's cmd/main.go and
// cmd/migrate/main.go, which each defined their own copies of these
// helpers inline.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadDotEnv tries .env, then ../.env, warning (not failing) on a miss —
// the teacher's cmd/main.go convention.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	if err := godotenv.Load("../.env"); err == nil {
		return
	}
	zap.L().Warn("no .env file found, using process environment")
}

// GetEnv returns the environment variable or def if unset/empty.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvInt returns the environment variable parsed as int, or def if
// unset or unparsable.
func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// SocketPrefix returns the namespace segment used to build
// /tmp/<prefix>-control-<machine>.sock and /tmp/<prefix>-events.sock
// paths (spec §6), letting multiple independent FSM fleets share a
// single /tmp without colliding.
func SocketPrefix() string {
	return GetEnv("STATEMACHINE_SOCKET_PREFIX", "statemachine")
}
