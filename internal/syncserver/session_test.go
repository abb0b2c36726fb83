package syncserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/protocol"
	"github.com/gosyncbox/syncbox/internal/syncstate"
	"github.com/gosyncbox/syncbox/internal/wire"
)

// TestSessionPushFirstFile drives spec's S1 scenario end-to-end: a client
// pushes a.txt ("hello") to an empty server and the server commits version
// 1, sync_version 1.
func TestSessionPushFirstFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		sess := NewSession(wire.NewConn(serverConn, nil), store, nil, nil, "test-session")
		serverDone <- sess.Run(context.Background())
	}()

	client := wire.NewConn(clientConn, nil)

	require.NoError(t, protocol.SendJSON(client, protocol.CmdHello, protocol.HelloPayload{ClientID: "abcd1234", ProtocolVersion: protocol.ProtocolVersion}))
	_, err = protocol.RecvJSON(client, nil)
	require.NoError(t, err)

	localState := syncstate.New()
	localState.Files["a.txt"] = &syncstate.FileEntry{
		Path: "a.txt", Hash: "5d41402abc4b2a76b9719d911017c592", Size: 5, Version: 1, Status: syncstate.StatusActive,
	}

	require.NoError(t, protocol.SendJSON(client, protocol.CmdSyncRequest, protocol.SyncRequestPayload{
		Mode: plan.ModePush, LocalState: localState, BaseVersion: 0, ConflictStrategy: plan.StrategyAsk,
	}))

	var planPayload protocol.PlanPayload
	cmd, err := protocol.RecvJSON(client, &planPayload)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdOK, cmd)
	require.Len(t, planPayload.Transfers, 1)
	assert.Equal(t, "a.txt", planPayload.Transfers[0].Path)

	require.NoError(t, protocol.SendFile(client, "a.txt", []byte("hello"), 0))
	_, err = protocol.RecvJSON(client, nil)
	require.NoError(t, err)

	require.NoError(t, protocol.SendJSON(client, protocol.CmdSyncComplete, protocol.SyncCompletePayload{}))
	var ack protocol.SyncCompleteAckPayload
	cmd, err = protocol.RecvJSON(client, &ack)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdOK, cmd)
	assert.EqualValues(t, 1, ack.NewSyncVersion)

	require.NoError(t, <-serverDone)

	snap := store.Snapshot()
	assert.EqualValues(t, 1, snap.SyncVersion)
	require.NotNil(t, snap.Files["a.txt"])
	assert.EqualValues(t, 1, snap.Files["a.txt"].Version)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", snap.Files["a.txt"].Hash)
}

// TestSessionAdoptVersionPreservesTombstone drives an adopt-version plan
// action over a path both sides already agree is deleted, only at
// differing tombstone versions, and asserts the server's commit never
// resurrects it: status, hash, and deleted_at must survive untouched with
// only the version bumped (spec §3 invariant 1, testable property 3).
func TestSessionAdoptVersionPreservesTombstone(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	_, err = store.Commit(map[string]*syncstate.FileEntry{
		"gone.txt": {Path: "gone.txt", Version: 2, Status: syncstate.StatusDeleted, DeletedAt: timePtr()},
	})
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		sess := NewSession(wire.NewConn(serverConn, nil), store, nil, nil, "adopt-tombstone")
		serverDone <- sess.Run(context.Background())
	}()

	client := wire.NewConn(clientConn, nil)

	require.NoError(t, protocol.SendJSON(client, protocol.CmdHello, protocol.HelloPayload{ClientID: "abcd1234", ProtocolVersion: protocol.ProtocolVersion}))
	_, err = protocol.RecvJSON(client, nil)
	require.NoError(t, err)

	localState := syncstate.New()
	localState.Files["gone.txt"] = &syncstate.FileEntry{
		Path: "gone.txt", Version: 5, Status: syncstate.StatusDeleted, DeletedAt: timePtr(),
	}

	require.NoError(t, protocol.SendJSON(client, protocol.CmdSyncRequest, protocol.SyncRequestPayload{
		Mode: plan.ModePush, LocalState: localState, BaseVersion: 1, ConflictStrategy: plan.StrategyAsk,
	}))

	var planPayload protocol.PlanPayload
	cmd, err := protocol.RecvJSON(client, &planPayload)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdOK, cmd)
	require.Len(t, planPayload.Transfers, 1)
	assert.Equal(t, plan.ActionAdoptVersion, planPayload.Transfers[0].Kind)

	require.NoError(t, protocol.SendJSON(client, protocol.CmdSyncComplete, protocol.SyncCompletePayload{}))
	var ack protocol.SyncCompleteAckPayload
	cmd, err = protocol.RecvJSON(client, &ack)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdOK, cmd)

	require.NoError(t, <-serverDone)

	snap := store.Snapshot()
	entry := snap.Files["gone.txt"]
	require.NotNil(t, entry)
	assert.EqualValues(t, 5, entry.Version)
	assert.Equal(t, syncstate.StatusDeleted, entry.Status)
	assert.Empty(t, entry.Hash)
	assert.Zero(t, entry.Size)
	assert.NotNil(t, entry.DeletedAt)
}

func timePtr() *time.Time {
	t := time.Now()
	return &t
}

// TestSessionRejectsBadProtocolVersion exercises the HELLO_RECEIVED
// rejection path.
func TestSessionRejectsBadProtocolVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		sess := NewSession(wire.NewConn(serverConn, nil), store, nil, nil, "bad-version")
		serverDone <- sess.Run(context.Background())
	}()

	client := wire.NewConn(clientConn, nil)
	require.NoError(t, protocol.SendJSON(client, protocol.CmdHello, protocol.HelloPayload{ClientID: "abcd1234", ProtocolVersion: 999}))

	var errPayload protocol.ErrorPayload
	cmd, err := protocol.RecvJSON(client, &errPayload)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdError, cmd)
	assert.NotEmpty(t, errPayload.Message)

	err = <-serverDone
	assert.ErrorIs(t, err, protocol.ErrSessionAborted)
}
