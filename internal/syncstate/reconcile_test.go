package syncstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileNewPath(t *testing.T) {
	scanned := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Size: 5, Status: StatusActive},
	}

	result := Reconcile(nil, scanned, time.Now())
	require.Contains(t, result, "a.txt")
	assert.Equal(t, int64(1), result["a.txt"].Version)
	assert.Equal(t, StatusActive, result["a.txt"].Status)
}

func TestReconcileUnchangedDoesNotBumpVersion(t *testing.T) {
	previous := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Size: 5, Version: 3, Status: StatusActive},
	}
	scanned := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Size: 5, Status: StatusActive},
	}

	result := Reconcile(previous, scanned, time.Now())
	assert.Equal(t, int64(3), result["a.txt"].Version)
}

func TestReconcileChangedBumpsVersion(t *testing.T) {
	previous := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Size: 5, Version: 3, Status: StatusActive},
	}
	scanned := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h2", Size: 6, Status: StatusActive},
	}

	result := Reconcile(previous, scanned, time.Now())
	assert.Equal(t, int64(4), result["a.txt"].Version)
	assert.Equal(t, "h2", result["a.txt"].Hash)
}

func TestReconcileMissingBecomesTombstone(t *testing.T) {
	previous := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Size: 5, Version: 1, Status: StatusActive},
	}
	scanned := map[string]*FileEntry{}

	now := time.Now()
	result := Reconcile(previous, scanned, now)
	require.Contains(t, result, "a.txt")
	entry := result["a.txt"]
	assert.Equal(t, StatusDeleted, entry.Status)
	assert.Equal(t, "", entry.Hash)
	assert.Equal(t, int64(0), entry.Size)
	assert.Equal(t, int64(2), entry.Version)
	require.NotNil(t, entry.DeletedAt)
	assert.WithinDuration(t, now, *entry.DeletedAt, time.Second)
}

func TestReconcileTombstoneIsNeverResurrectedByRescan(t *testing.T) {
	previous := map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "", Size: 0, Version: 2, Status: StatusDeleted},
	}
	scanned := map[string]*FileEntry{}

	result := Reconcile(previous, scanned, time.Now())
	require.Contains(t, result, "a.txt")
	assert.Equal(t, StatusDeleted, result["a.txt"].Status)
	assert.Equal(t, int64(2), result["a.txt"].Version)
}

func TestReconcileVersionMonotonicAcrossSequence(t *testing.T) {
	state := map[string]*FileEntry{}

	// create
	state = Reconcile(state, map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Status: StatusActive},
	}, time.Now())
	assert.Equal(t, int64(1), state["a.txt"].Version)

	// unchanged rescan
	state = Reconcile(state, map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h1", Status: StatusActive},
	}, time.Now())
	assert.Equal(t, int64(1), state["a.txt"].Version)

	// modify
	state = Reconcile(state, map[string]*FileEntry{
		"a.txt": {Path: "a.txt", Hash: "h2", Status: StatusActive},
	}, time.Now())
	assert.Equal(t, int64(2), state["a.txt"].Version)

	// delete
	state = Reconcile(state, map[string]*FileEntry{}, time.Now())
	assert.Equal(t, int64(3), state["a.txt"].Version)
	assert.Equal(t, StatusDeleted, state["a.txt"].Status)

	// rescan absent: tombstone persists, version unchanged
	state = Reconcile(state, map[string]*FileEntry{}, time.Now())
	assert.Equal(t, int64(3), state["a.txt"].Version)
	assert.Equal(t, StatusDeleted, state["a.txt"].Status)
}
