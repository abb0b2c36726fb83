package syncclient

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/syncserver"
)

func startTestServer(t *testing.T) (addr string) {
	t.Helper()
	dir := t.TempDir()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	require.NoError(t, ln.Close())

	srv, err := syncserver.New(syncserver.Config{Addr: addr, StatePath: filepath.Join(dir, "state.json")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = srv.Start(ctx) }()

	for i := 0; i < 100; i++ {
		if c, err := net.Dial("tcp", addr); err == nil {
			c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return addr
}

func TestDriverPushUploadsNewFile(t *testing.T) {
	addr := startTestServer(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	statePath := filepath.Join(t.TempDir(), "client-state.json")
	driver := New(Config{
		ServerAddr: addr, Root: root, StatePath: statePath,
		Mode: plan.ModePush, ConflictStrategy: plan.StrategyAsk,
	})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, result.Uploaded)
	assert.EqualValues(t, 1, result.NewSyncVersion)
}

func TestDriverPushThenPullRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	rootA := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.txt"), []byte("hello"), 0o644))
	stateA := filepath.Join(t.TempDir(), "a-state.json")
	driverA := New(Config{ServerAddr: addr, Root: rootA, StatePath: stateA, Mode: plan.ModePush, ConflictStrategy: plan.StrategyAsk})
	_, err := driverA.Run(context.Background())
	require.NoError(t, err)

	rootB := t.TempDir()
	stateB := filepath.Join(t.TempDir(), "b-state.json")
	driverB := New(Config{ServerAddr: addr, Root: rootB, StatePath: stateB, Mode: plan.ModePull, ConflictStrategy: plan.StrategyAsk})
	result, err := driverB.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, result.Downloaded)

	body, err := os.ReadFile(filepath.Join(rootB, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}
