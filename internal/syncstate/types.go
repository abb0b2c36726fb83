// Package syncstate implements the versioned directory state model: per-path
// fingerprints, tombstones, and the JSON document that records them.
package syncstate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Status is the lifecycle state of a FileEntry.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// ServerClientID is the literal client_id the server uses for its own
// SyncState record (spec §3).
const ServerClientID = "server"

// FileEntry is one record per path ever observed under a sync root.
type FileEntry struct {
	Path       string     `json:"path"`
	Hash       string     `json:"hash"`
	Size       int64      `json:"size"`
	Modified   time.Time  `json:"modified"`
	Version    int64      `json:"version"`
	Status     Status     `json:"status"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Active reports whether the entry currently refers to live content.
func (f *FileEntry) Active() bool {
	return f != nil && f.Status == StatusActive
}

// Deleted reports whether the entry is a tombstone.
func (f *FileEntry) Deleted() bool {
	return f != nil && f.Status == StatusDeleted
}

// Clone returns a deep copy of the entry.
func (f *FileEntry) Clone() *FileEntry {
	if f == nil {
		return nil
	}
	cp := *f
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

// State is the persisted SyncState document (spec §3).
type State struct {
	Files        map[string]*FileEntry `json:"files"`
	SyncVersion  int64                 `json:"sync_version"`
	BaseVersion  int64                 `json:"base_version"`
	ClientID     string                `json:"client_id"`
	LastSyncTime time.Time             `json:"last_sync_time"`
}

// New returns an empty state with a freshly generated client_id.
func New() *State {
	id, err := randClientID()
	if err != nil {
		// crypto/rand failure is unrecoverable on any real platform; fall
		// back to a fixed marker rather than panicking mid-scan.
		id = "00000000"
	}
	return &State{
		Files:    make(map[string]*FileEntry),
		ClientID: id,
	}
}

// NewServer returns an empty state tagged with the server's literal
// client_id, per spec §3.
func NewServer() *State {
	s := New()
	s.ClientID = ServerClientID
	return s
}

// Clone deep-copies the state, safe to hand out as a read snapshot.
func (s *State) Clone() *State {
	cp := &State{
		Files:        make(map[string]*FileEntry, len(s.Files)),
		SyncVersion:  s.SyncVersion,
		BaseVersion:  s.BaseVersion,
		ClientID:     s.ClientID,
		LastSyncTime: s.LastSyncTime,
	}
	for path, entry := range s.Files {
		cp.Files[path] = entry.Clone()
	}
	return cp
}

// MaxFileVersion returns the highest version among all files, 0 if empty.
func (s *State) MaxFileVersion() int64 {
	var max int64
	for _, f := range s.Files {
		if f.Version > max {
			max = f.Version
		}
	}
	return max
}

func randClientID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
