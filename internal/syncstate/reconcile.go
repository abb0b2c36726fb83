package syncstate

import "time"

// Reconcile applies the lifecycle rules of spec §4.A: it compares the
// previously persisted files against a fresh scan and returns the updated
// file map. previous may be nil (treated as empty). now is injected so
// callers (and tests) control the timestamp of any deletion.
func Reconcile(previous map[string]*FileEntry, scanned map[string]*FileEntry, now time.Time) map[string]*FileEntry {
	result := make(map[string]*FileEntry, len(scanned)+len(previous))

	for path, scan := range scanned {
		prev, existed := previous[path]

		switch {
		case existed && prev.Active() && prev.Hash == scan.Hash:
			// unchanged: carry the entry forward untouched, do not bump version
			result[path] = prev.Clone()

		case existed && prev.Active():
			// fingerprint changed: bump version
			entry := scan.Clone()
			entry.Version = prev.Version + 1
			result[path] = entry

		case existed && prev.Deleted():
			// resurrection via rescan: treat as a fresh edit over a tombstone
			entry := scan.Clone()
			entry.Version = prev.Version + 1
			result[path] = entry

		default:
			// brand new path
			entry := scan.Clone()
			entry.Version = 1
			result[path] = entry
		}
	}

	for path, prev := range previous {
		if _, stillPresent := scanned[path]; stillPresent {
			continue
		}

		if prev.Deleted() {
			// tombstones persist indefinitely until explicit compaction
			result[path] = prev.Clone()
			continue
		}

		// previously active, now missing: transition to deleted
		deletedAt := now
		result[path] = &FileEntry{
			Path:      path,
			Hash:      "",
			Size:      0,
			Modified:  prev.Modified,
			Version:   prev.Version + 1,
			Status:    StatusDeleted,
			DeletedAt: &deletedAt,
		}
	}

	return result
}
