package syncserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gosyncbox/syncbox/internal/audit"
	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/protocol"
	"github.com/gosyncbox/syncbox/internal/syncstate"
	"github.com/gosyncbox/syncbox/internal/wire"
)

// sessionState names a step in the per-connection state machine (spec §4.D).
type sessionState string

const (
	stateListen         sessionState = "LISTEN"
	stateHelloReceived   sessionState = "HELLO_RECEIVED"
	statePlanNegotiated sessionState = "PLAN_NEGOTIATED"
	stateCompleted      sessionState = "COMPLETED"
	stateFailed         sessionState = "FAILED"
)

// Session drives one client connection through HELLO, plan negotiation,
// transfer/delete, and commit.
type Session struct {
	conn  *wire.Conn
	store *Store
	files *FileStore
	log   *audit.Log
	id    string

	state    sessionState
	clientID string
	mode     plan.Mode
	computed *plan.Plan
	remote   *syncstate.State
	touched  map[string]*syncstate.FileEntry
	bodies   map[string][]byte
}

// NewSession constructs a session for one accepted connection. files may be
// nil (as in tests): pushed bodies are then not stored on disk, and a pull
// that has a file to send fails.
func NewSession(conn *wire.Conn, store *Store, files *FileStore, log *audit.Log, id string) *Session {
	return &Session{conn: conn, store: store, files: files, log: log, id: id, state: stateListen}
}

// Run drives the session to completion or failure. It never panics on
// protocol errors; any failure is returned wrapping
// protocol.ErrSessionAborted, and the caller closes the connection.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil && err != protocol.ErrSessionAborted {
			err = fmt.Errorf("%w: %w", protocol.ErrSessionAborted, err)
		}
	}()

	if err := s.doHello(); err != nil {
		s.state = stateFailed
		return err
	}
	s.state = stateHelloReceived

	req, conflicts, err := s.doNegotiate()
	if err != nil {
		s.state = stateFailed
		return err
	}
	if conflicts {
		return nil
	}
	s.state = statePlanNegotiated

	if err := s.doTransferAndDelete(req); err != nil {
		s.state = stateFailed
		return err
	}

	if err := s.doComplete(ctx, req); err != nil {
		s.state = stateFailed
		return err
	}
	s.state = stateCompleted
	return nil
}

func (s *Session) doHello() error {
	var hello protocol.HelloPayload
	cmd, err := protocol.RecvJSON(s.conn, &hello)
	if err != nil {
		return err
	}
	if cmd != protocol.CmdHello {
		return protocol.SendError(s.conn, fmt.Sprintf("expected HELLO, got %s", cmd))
	}
	if hello.ProtocolVersion != protocol.ProtocolVersion {
		return protocol.SendError(s.conn, fmt.Sprintf("unsupported protocol_version %d", hello.ProtocolVersion))
	}
	s.clientID = hello.ClientID
	return protocol.SendJSON(s.conn, protocol.CmdOK, nil)
}

func (s *Session) doNegotiate() (*protocol.SyncRequestPayload, bool, error) {
	var req protocol.SyncRequestPayload
	cmd, err := protocol.RecvJSON(s.conn, &req)
	if err != nil {
		return nil, false, err
	}
	if cmd != protocol.CmdSyncRequest {
		return nil, false, protocol.SendError(s.conn, fmt.Sprintf("expected SYNC_REQUEST, got %s", cmd))
	}
	s.mode = req.Mode

	remote := s.store.Snapshot()
	local := req.LocalState
	if local == nil {
		local = syncstate.New()
	}
	local.BaseVersion = req.BaseVersion

	computed, err := plan.Compute(local, remote, req.Mode, req.ConflictStrategy)
	if err != nil {
		return nil, false, protocol.SendError(s.conn, err.Error())
	}
	s.computed = computed
	s.remote = remote

	if computed.HasConflicts() {
		slog.Warn("sync conflict", "session", s.id, "client", s.clientID, "conflicts", len(computed.Conflicts))
		if err := protocol.SendJSON(s.conn, protocol.CmdConflict, protocol.ConflictPayloadFrom(computed)); err != nil {
			return nil, true, err
		}
		return &req, true, nil
	}

	if err := protocol.SendJSON(s.conn, protocol.CmdOK, protocol.PlanPayloadFrom(computed)); err != nil {
		return nil, false, err
	}
	return &req, false, nil
}

func (s *Session) doTransferAndDelete(req *protocol.SyncRequestPayload) error {
	s.touched = make(map[string]*syncstate.FileEntry, len(s.computed.Transfers)+len(s.computed.Deletes))
	s.bodies = make(map[string][]byte)

	switch s.mode {
	case plan.ModePush:
		return s.receivePushed(req)
	case plan.ModePull:
		return s.sendPulled(req)
	default:
		return protocol.SendError(s.conn, fmt.Sprintf("unknown mode %q", s.mode))
	}
}

// receivePushed reads FILE_DATA/DELETE_FILE frames from the client for a
// push-mode session, in plan order, ACKing each with OK or ERROR.
func (s *Session) receivePushed(req *protocol.SyncRequestPayload) error {
	local := req.LocalState

	for _, a := range s.computed.Transfers {
		if a.Kind == plan.ActionAdoptVersion {
			s.touched[a.Path] = adoptEntry(a, s.remote.Files[a.Path])
			continue
		}
		path, body, err := protocol.RecvFile(s.conn)
		if err != nil {
			_ = protocol.SendJSON(s.conn, protocol.CmdError, protocol.ErrorPayload{Message: err.Error()})
			continue
		}
		entry := local.Files[path]
		if entry == nil {
			entry = &syncstate.FileEntry{Path: path}
		}
		entry = entry.Clone()
		entry.Hash = protocol.HashBytes(body)
		entry.Size = int64(len(body))
		entry.Status = syncstate.StatusActive
		entry.Version = a.Version
		s.touched[path] = entry
		s.bodies[path] = body
		slog.Debug("received file", "session", s.id, "path", path, "size", humanize.Bytes(uint64(len(body))))
		if err := protocol.SendJSON(s.conn, protocol.CmdOK, nil); err != nil {
			return err
		}
	}

	for _, a := range s.computed.Deletes {
		var del protocol.DeleteFilePayload
		cmd, err := protocol.RecvJSON(s.conn, &del)
		if err != nil {
			return err
		}
		if cmd != protocol.CmdDeleteFile {
			return protocol.SendError(s.conn, fmt.Sprintf("expected DELETE_FILE, got %s", cmd))
		}
		now := time.Now()
		s.touched[a.Path] = &syncstate.FileEntry{
			Path: a.Path, Status: syncstate.StatusDeleted, Version: a.Version, DeletedAt: &now,
		}
		if err := protocol.SendJSON(s.conn, protocol.CmdOK, nil); err != nil {
			return err
		}
	}
	return nil
}

// sendPulled streams FILE_DATA/DELETE_FILE frames to the client for a
// pull-mode session. No server-side state mutation occurs beyond
// bookkeeping (spec §4.E read-only sessions).
func (s *Session) sendPulled(req *protocol.SyncRequestPayload) error {
	remote := s.store.Snapshot()

	for _, a := range s.computed.Transfers {
		if a.Kind == plan.ActionAdoptVersion {
			continue
		}
		entry := remote.Files[a.Path]
		if entry == nil {
			return protocol.SendError(s.conn, fmt.Sprintf("plan references missing remote entry %s", a.Path))
		}
		if s.files == nil {
			return protocol.SendError(s.conn, fmt.Sprintf("no file store wired for %s", a.Path))
		}
		body, err := s.files.Read(a.Path)
		if err != nil {
			return protocol.SendError(s.conn, err.Error())
		}
		if err := protocol.SendFile(s.conn, a.Path, body, 0); err != nil {
			return err
		}
		if _, err := protocol.RecvJSON(s.conn, nil); err != nil {
			return err
		}
	}

	for _, a := range s.computed.Deletes {
		if err := protocol.SendJSON(s.conn, protocol.CmdDeleteFile, protocol.DeleteFilePayload{Path: a.Path, Version: a.Version}); err != nil {
			return err
		}
		if _, err := protocol.RecvJSON(s.conn, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) doComplete(ctx context.Context, req *protocol.SyncRequestPayload) error {
	var complete protocol.SyncCompletePayload
	cmd, err := protocol.RecvJSON(s.conn, &complete)
	if err != nil {
		return err
	}
	if cmd != protocol.CmdSyncComplete {
		return protocol.SendError(s.conn, fmt.Sprintf("expected SYNC_COMPLETE, got %s", cmd))
	}

	// A session that touched nothing (a pull, or a push with an empty plan)
	// commits nothing: sync_version stays where it is.
	if len(s.touched) == 0 {
		return protocol.SendJSON(s.conn, protocol.CmdOK, protocol.SyncCompleteAckPayload{NewSyncVersion: s.store.Snapshot().SyncVersion})
	}

	// Write bodies before committing metadata: if a body write fails, the
	// metadata commit never happens and the session aborts with the
	// authoritative state untouched (spec §4.E all-or-nothing commit).
	if s.files != nil {
		for path, body := range s.bodies {
			if err := s.files.Write(path, body); err != nil {
				return protocol.SendError(s.conn, fmt.Sprintf("store %s: %v", path, err))
			}
		}
		for _, a := range s.computed.Deletes {
			if a.Kind == plan.ActionDeleteRemote {
				_ = s.files.Remove(a.Path)
			}
		}
	}

	newVersion, err := s.store.Commit(s.touched)
	if err != nil {
		return protocol.SendError(s.conn, err.Error())
	}

	if s.log != nil {
		if err := s.log.RecordCommit(ctx, audit.Entry{
			SessionID:  s.id,
			ClientID:   s.clientID,
			Mode:       string(s.mode),
			FileCount:  len(s.touched),
			NewVersion: newVersion,
			CommittedAt: time.Now(),
		}); err != nil {
			slog.Warn("audit log record failed", "session", s.id, "error", err)
		}
	}

	return protocol.SendJSON(s.conn, protocol.CmdOK, protocol.SyncCompleteAckPayload{NewSyncVersion: newVersion})
}

// adoptEntry bumps stored's version to the adopted version without touching
// anything else about it: an adopt action means both sides already agree on
// content (same hash, or both tombstoned) and only the version numbers
// diverged, so Status/Hash/Size/DeletedAt must survive untouched (spec §3
// invariant 1; testable property 3, tombstones are never resurrected by a
// version adoption).
func adoptEntry(a plan.Action, stored *syncstate.FileEntry) *syncstate.FileEntry {
	entry := stored.Clone()
	if entry == nil {
		entry = &syncstate.FileEntry{Path: a.Path, Status: syncstate.StatusActive}
	}
	entry.Path = a.Path
	entry.Version = a.Version
	return entry
}
