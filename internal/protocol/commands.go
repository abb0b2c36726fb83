// Package protocol implements the typed command exchange over a single
// framed connection described in spec §4.D: handshake, plan negotiation,
// file transfer, deletion, and completion.
package protocol

import "errors"

// Command is one of the nine typed frames the session state machine
// exchanges (spec §4.D).
type Command string

const (
	CmdHello        Command = "HELLO"
	CmdOK           Command = "OK"
	CmdError        Command = "ERROR"
	CmdConflict     Command = "CONFLICT"
	CmdGetState     Command = "GET_STATE"
	CmdSyncRequest  Command = "SYNC_REQUEST"
	CmdFileData     Command = "FILE_DATA"
	CmdDeleteFile   Command = "DELETE_FILE"
	CmdSyncComplete Command = "SYNC_COMPLETE"
)

// ProtocolVersion is the handshake version this implementation speaks.
const ProtocolVersion = 2

// ErrSessionAborted is the single sentinel a session propagates up to its
// accept loop on any failure, replacing "exceptions as control flow"
// (spec §9 redesign flags).
var ErrSessionAborted = errors.New("protocol: session aborted")

// ErrProtocolMismatch indicates the peer's protocol_version is unsupported.
var ErrProtocolMismatch = errors.New("protocol: version mismatch")

// ErrUnexpectedCommand indicates a command arrived out of state-machine
// order.
var ErrUnexpectedCommand = errors.New("protocol: unexpected command")
