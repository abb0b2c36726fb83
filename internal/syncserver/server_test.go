package syncserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gosyncbox/syncbox/internal/protocol"
	"github.com/gosyncbox/syncbox/internal/wire"
)

func TestServerAcceptsAndCompletesHello(t *testing.T) {
	dir := t.TempDir()
	srv, err := New(Config{
		Addr:      "127.0.0.1:0",
		StatePath: filepath.Join(dir, "state.json"),
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	srv.cfg.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Start(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)

	client := wire.NewConn(conn, nil)
	require.NoError(t, protocol.SendJSON(client, protocol.CmdHello, protocol.HelloPayload{ClientID: "abcd1234", ProtocolVersion: protocol.ProtocolVersion}))
	cmd, err := protocol.RecvJSON(client, nil)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdOK, cmd)

	// Close before cancel so the in-flight session unblocks and the pool
	// drain inside Stop doesn't wait on a connection we're holding open.
	require.NoError(t, conn.Close())

	cancel()
	<-serveDone
}
