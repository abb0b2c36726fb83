package syncstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persist writes state to path as a single JSON document, replacing it
// atomically (write to a sibling temp file, then rename), per spec §4.A.
func Persist(state *State, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Load reads a SyncState document from path. A missing or malformed file
// yields a fresh empty state (with a new client_id) rather than an error,
// per spec §4.A.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return New(), nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return New(), nil
	}

	if state.Files == nil {
		state.Files = make(map[string]*FileEntry)
	}
	if state.ClientID == "" {
		fresh := New()
		state.ClientID = fresh.ClientID
	}

	return &state, nil
}

// LoadServer is Load, but falls back to a fresh server-tagged state.
func LoadServer(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewServer(), nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return NewServer(), nil
	}

	if state.Files == nil {
		state.Files = make(map[string]*FileEntry)
	}
	if state.ClientID == "" {
		state.ClientID = ServerClientID
	}

	return &state, nil
}
