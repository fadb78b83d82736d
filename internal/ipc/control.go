package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

// ControlSocket is the per-machine datagram inbox used for peer→peer
// events (C6). The engine polls it once per loop iteration with a
// bounded wait so the cooperative loop never blocks on an empty inbox.
type ControlSocket struct {
	path string
	conn *net.UnixConn
}

// DefaultControlPath returns the standard per-machine socket path for a
// given namespace prefix and machine name.
func DefaultControlPath(prefix, machine string) string {
	return fmt.Sprintf("/tmp/%s-control-%s.sock", prefix, machine)
}

// Bind removes any stale file at path and binds a non-blocking datagram
// socket there.
func Bind(path string) (*ControlSocket, error) {
	if _, err := os.Stat(path); err == nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, fmt.Errorf("remove stale control socket: %w", rmErr)
		}
	}

	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("bind control socket: %w", err)
	}
	if err := conn.SetReadBuffer(64 * 1024); err != nil {
		zap.L().Warn("set control socket read buffer failed", zap.Error(err))
	}

	return &ControlSocket{path: path, conn: conn}, nil
}

// Poll waits up to the given duration for one datagram. Returns (nil,
// nil) on a timeout with nothing to read — that is the expected idle
// case, not an error. Malformed JSON is logged and discarded (returns
// nil, nil) per spec §4.6 step 1. A string payload is auto-parsed to a
// map; if that fails it becomes an empty map with a logged warning
// (spec §4.6 step 2 / P10).
func (c *ControlSocket) Poll(timeout time.Duration) (map[string]interface{}, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 64*1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	var outer map[string]interface{}
	if jsonErr := json.Unmarshal(buf[:n], &outer); jsonErr != nil {
		zap.L().Warn("malformed control socket datagram, discarding", zap.Error(jsonErr))
		return nil, nil
	}

	if payloadStr, ok := outer["payload"].(string); ok {
		var parsed interface{}
		if jsonErr := json.Unmarshal([]byte(payloadStr), &parsed); jsonErr != nil {
			zap.L().Warn("malformed payload string, replacing with empty map", zap.Error(jsonErr))
			outer["payload"] = map[string]interface{}{}
		} else {
			outer["payload"] = parsed
		}
	}

	return outer, nil
}

// Close closes the bound socket and unlinks its file.
func (c *ControlSocket) Close() error {
	err := c.conn.Close()
	os.Remove(c.path)
	return err
}

// Send transmits a JSON record to a peer's control socket. Used by
// send_event and by wakeup signals. Returns an error if the target
// socket is missing or the send otherwise fails (callers fall back to
// the Store path).
func Send(path string, record map[string]interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal control record: %w", err)
	}

	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("dial control socket %s: %w", path, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := conn.Write(raw); err != nil {
		return fmt.Errorf("write control socket %s: %w", path, err)
	}
	return nil
}

// SendWakeup sends the {"type": "wake_up"} datagram peers use purely to
// break an idle poll.
func SendWakeup(path string) error {
	return Send(path, map[string]interface{}{"type": "wake_up"})
}
