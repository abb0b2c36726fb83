// Package syncserver implements the authoritative server: the state guard,
// the accept loop, and the per-connection session state machine (spec §4.E).
package syncserver

import (
	"fmt"
	"sync"

	"github.com/gosyncbox/syncbox/internal/syncstate"
)

// Store guards the authoritative in-memory SyncState mirror. Plan
// computation takes a read-locked snapshot; a session's commit is the only
// write-locked critical section (spec §4.E/§5).
type Store struct {
	mu    sync.RWMutex
	state *syncstate.State
	path  string
}

// NewStore loads (or initializes) the authoritative state from path.
func NewStore(path string) (*Store, error) {
	state, err := syncstate.LoadServer(path)
	if err != nil {
		return nil, fmt.Errorf("load server state: %w", err)
	}
	return &Store{state: state, path: path}, nil
}

// Snapshot returns a read-locked deep copy safe for plan computation
// outside the guard.
func (s *Store) Snapshot() *syncstate.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Commit applies touched entries to the authoritative state under the
// write lock, re-verifies no version regression, bumps sync_version to
// max(current + 1, max(touched.version)), and persists atomically. It
// returns the new sync_version.
//
// A commit is all-or-nothing: if persistence fails, the in-memory state is
// rolled back to the pre-commit snapshot so a dropped session never leaves
// the mirror and the on-disk document disagreeing (spec §4.E, §7
// property 7).
func (s *Store) Commit(touched map[string]*syncstate.FileEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.Clone()

	var maxTouched int64
	for path, entry := range touched {
		if existing := s.state.Files[path]; existing != nil && entry.Version < existing.Version {
			s.state = before
			return 0, fmt.Errorf("commit %s: version regression (have %d, got %d)", path, existing.Version, entry.Version)
		}
		s.state.Files[path] = entry.Clone()
		if entry.Version > maxTouched {
			maxTouched = entry.Version
		}
	}

	next := s.state.SyncVersion + 1
	if maxTouched > next {
		next = maxTouched
	}
	s.state.SyncVersion = next

	if err := syncstate.Persist(s.state, s.path); err != nil {
		s.state = before
		return 0, fmt.Errorf("persist commit: %w", err)
	}

	return next, nil
}
