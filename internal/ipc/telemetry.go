// Package ipc implements the two datagram sockets that make up the
// inter-process coordination fabric: the shared telemetry socket (C5) and
// the per-machine control socket (C6).
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// TelemetryEmitter is a non-blocking datagram client for the shared
// telemetry socket. Sends are fire-and-forget: on any failure the
// connection is torn down and a fresh one is attempted on the next Emit
// call, matching the Python EventSocketManager's reconnect-on-next-emit
// behavior.
type TelemetryEmitter struct {
	path string
	conn *net.UnixConn
}

// NewTelemetryEmitter returns an emitter bound to the shared socket path.
// Connection is lazy: the first Emit call dials it.
func NewTelemetryEmitter(path string) *TelemetryEmitter {
	return &TelemetryEmitter{path: path}
}

func (e *TelemetryEmitter) connect() error {
	if e.conn != nil {
		return nil
	}
	addr := &net.UnixAddr{Name: e.path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return err
	}
	e.conn = conn
	return nil
}

// Emit sends a telemetry record {machine_name, event_type, payload}.
// Returns false on any failure (socket missing, no receiver, write
// error); it never blocks and never panics. Callers fall back to a
// Store write on false.
func (e *TelemetryEmitter) Emit(machine, eventType string, payload interface{}) bool {
	record := map[string]interface{}{
		"machine_name": machine,
		"event_type":   eventType,
		"payload":      payload,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		zap.L().Warn("telemetry record marshal failed", zap.Error(err))
		return false
	}

	if err := e.connect(); err != nil {
		return false
	}

	e.conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := e.conn.Write(raw); err != nil {
		e.conn.Close()
		e.conn = nil
		return false
	}
	return true
}

// Close releases the client socket, if one is open.
func (e *TelemetryEmitter) Close() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

// DefaultTelemetryPath returns the standard shared socket path for a
// given namespace prefix.
func DefaultTelemetryPath(prefix string) string {
	return fmt.Sprintf("/tmp/%s-events.sock", prefix)
}
