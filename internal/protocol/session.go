package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gosyncbox/syncbox/internal/wire"
)

// SendJSON marshals v and sends it as the payload of cmd.
func SendJSON(conn *wire.Conn, cmd Command, v any) error {
	var data []byte
	if v != nil {
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("protocol: marshal %s payload: %w", cmd, err)
		}
	}
	return conn.Send(string(cmd), data)
}

// RecvJSON reads the next frame and unmarshals its payload into v, which
// may be nil when the caller only needs the command.
func RecvJSON(conn *wire.Conn, v any) (Command, error) {
	cmd, data, err := conn.Recv()
	if err != nil {
		return "", err
	}
	if v != nil && len(data) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return Command(cmd), fmt.Errorf("protocol: unmarshal %s payload: %w", cmd, err)
		}
	}
	return Command(cmd), nil
}

// SendError sends an ERROR frame with message and returns ErrSessionAborted
// so callers can propagate a single sentinel up to the session loop.
func SendError(conn *wire.Conn, message string) error {
	_ = SendJSON(conn, CmdError, ErrorPayload{Message: message})
	return ErrSessionAborted
}

// RecvRaw reads the next frame without decoding its payload, so the caller
// can branch on the command before picking a destination type (e.g.
// OK{plan} vs CONFLICT{conflicts} in response to SYNC_REQUEST).
func RecvRaw(conn *wire.Conn) (Command, []byte, error) {
	cmd, data, err := conn.Recv()
	if err != nil {
		return "", nil, err
	}
	return Command(cmd), data, nil
}

// DecodeInto unmarshals a payload previously read via RecvRaw into v.
func DecodeInto(cmd Command, data []byte, v any) error {
	if v == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %s payload: %w", cmd, err)
	}
	return nil
}
