package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosyncbox/syncbox/internal/syncstate"
)

func entry(hash string, version int64, status syncstate.Status) *syncstate.FileEntry {
	return &syncstate.FileEntry{Hash: hash, Version: version, Status: status}
}

func TestComputePushUploadsNewFile(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("5d41402abc4b2a76b9719d911017c592", 1, syncstate.StatusActive)
	remote := syncstate.NewServer()

	p, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Transfers, 1)
	assert.Equal(t, ActionUpload, p.Transfers[0].Kind)
	assert.Equal(t, "a.txt", p.Transfers[0].Path)
	assert.Empty(t, p.Conflicts)
}

func TestComputePullDownloadsNewRemoteFile(t *testing.T) {
	local := syncstate.New()
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("5d41402abc4b2a76b9719d911017c592", 1, syncstate.StatusActive)
	remote.SyncVersion = 1

	p, err := Compute(local, remote, ModePull, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Transfers, 1)
	assert.Equal(t, ActionDownload, p.Transfers[0].Kind)
}

func TestComputeNoOpWhenIdentical(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("h1", 1, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("h1", 1, syncstate.StatusActive)
	remote.SyncVersion = 1

	p, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	assert.Empty(t, p.Transfers)
	assert.Empty(t, p.Deletes)
	assert.Empty(t, p.Conflicts)
}

func TestComputeDeleteRemotePropagatesOnPush(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("", 2, syncstate.StatusDeleted)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("h1", 1, syncstate.StatusActive)
	remote.SyncVersion = 1

	p, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Deletes, 1)
	assert.Equal(t, ActionDeleteRemote, p.Deletes[0].Kind)
}

// S4: concurrent edit conflict, ask strategy.
func TestComputeConcurrentEditConflictAsk(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("hash-yo", 2, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("hash-hi", 2, syncstate.StatusActive)
	remote.SyncVersion = 2

	p, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Conflicts, 1)
	assert.Equal(t, ConflictConcurrentEdit, p.Conflicts[0].ConflictKind)
	assert.Empty(t, p.Transfers)
}

// S4 with remote strategy: client-2's push skips the conflicting path.
func TestComputeConcurrentEditRemoteStrategySkipsOnPush(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("hash-yo", 2, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("hash-hi", 2, syncstate.StatusActive)
	remote.SyncVersion = 2

	p, err := Compute(local, remote, ModePush, StrategyRemote)
	require.NoError(t, err)
	assert.Empty(t, p.Conflicts)
	assert.Empty(t, p.Transfers)
	assert.Empty(t, p.Deletes)
}

// S5: delete-vs-edit, local strategy on pull keeps the local edit.
func TestComputeRemoteDeletedLocalStrategyOnPullSkips(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("hash-edited", 2, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("", 2, syncstate.StatusDeleted)
	remote.SyncVersion = 2

	p, err := Compute(local, remote, ModePull, StrategyLocal)
	require.NoError(t, err)
	assert.Empty(t, p.Conflicts)
	assert.Empty(t, p.Transfers)
	assert.Empty(t, p.Deletes)
}

func TestComputeRemoteDeletedConflictOnAsk(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("hash-edited", 2, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("", 2, syncstate.StatusDeleted)
	remote.SyncVersion = 2

	p, err := Compute(local, remote, ModePull, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Conflicts, 1)
	assert.Equal(t, ConflictRemoteDeleted, p.Conflicts[0].ConflictKind)
}

func TestComputeAdoptsMaxVersionOnSameHashDifferentVersion(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("h1", 3, syncstate.StatusActive)
	local.BaseVersion = 3
	remote := syncstate.NewServer()
	remote.Files["a.txt"] = entry("h1", 5, syncstate.StatusActive)
	remote.SyncVersion = 5

	p, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	require.Len(t, p.Transfers, 1)
	assert.Equal(t, ActionAdoptVersion, p.Transfers[0].Kind)
	assert.EqualValues(t, 5, p.Transfers[0].Version)
}

func TestComputeIsDeterministic(t *testing.T) {
	local := syncstate.New()
	local.Files["a.txt"] = entry("h1", 1, syncstate.StatusActive)
	local.Files["b.txt"] = entry("h2", 1, syncstate.StatusActive)
	local.BaseVersion = 1
	remote := syncstate.NewServer()
	remote.SyncVersion = 0

	p1, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	p2, err := Compute(local, remote, ModePush, StrategyAsk)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
