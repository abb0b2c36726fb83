package syncstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_sync_state.json")

	state := New()
	state.Files["a.txt"] = &FileEntry{Path: "a.txt", Hash: "h1", Size: 5, Version: 1, Status: StatusActive}
	state.SyncVersion = 1
	state.BaseVersion = 1

	require.NoError(t, Persist(state, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, state.ClientID, loaded.ClientID)
	assert.Equal(t, int64(1), loaded.SyncVersion)
	require.Contains(t, loaded.Files, "a.txt")
	assert.Equal(t, "h1", loaded.Files["a.txt"].Hash)
}

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does_not_exist.json")

	state, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, state.Files)
	assert.NotEmpty(t, state.ClientID)
}

func TestLoadMalformedFileYieldsEmptyState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	state, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, state.Files)
}

func TestLoadServerUsesLiteralClientID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server_sync_state.json")

	state, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, ServerClientID, state.ClientID)
}
