package plan

import (
	"fmt"
	"sort"

	"github.com/gosyncbox/syncbox/internal/syncstate"
)

// Compute builds the deterministic plan between local and remote state for
// the given mode and conflict strategy, per spec §4.C. The same inputs
// always yield the same plan (property 4).
func Compute(local, remote *syncstate.State, mode Mode, strategy ConflictStrategy) (*Plan, error) {
	if local == nil || remote == nil {
		return nil, fmt.Errorf("compute plan: nil state")
	}

	diverged := local.BaseVersion < remote.SyncVersion

	paths := make(map[string]struct{}, len(local.Files)+len(remote.Files))
	for p := range local.Files {
		paths[p] = struct{}{}
	}
	for p := range remote.Files {
		paths[p] = struct{}{}
	}

	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	p := &Plan{}
	for _, path := range ordered {
		lf := local.Files[path]
		rf := remote.Files[path]

		action := classify(path, lf, rf, diverged, mode)
		if action == nil {
			continue
		}

		if action.Kind == ActionConflict && strategy != StrategyAsk {
			action = overrideConflict(action, lf, rf, mode, strategy)
			if action == nil {
				continue
			}
		}

		switch action.Kind {
		case ActionUpload, ActionDownload, ActionAdoptVersion:
			p.Transfers = append(p.Transfers, *action)
		case ActionDeleteRemote, ActionDeleteLocal:
			p.Deletes = append(p.Deletes, *action)
		case ActionConflict:
			p.Conflicts = append(p.Conflicts, *action)
		}
	}

	return p, nil
}

// classify resolves a single path against the push/pull decision tables in
// spec §4.C, returning the action an "ask" strategy would produce. nil means
// no-op.
func classify(path string, lf, rf *syncstate.FileEntry, diverged bool, mode Mode) *Action {
	lActive, lDeleted := lf.Active(), lf.Deleted()
	rActive, rDeleted := rf.Active(), rf.Deleted()

	switch {
	case lActive && rf == nil:
		if mode == ModePush {
			return upload(path, lf.Version)
		}
		return nil

	case lf == nil && rActive:
		if mode == ModePull {
			return download(path, rf.Version)
		}
		return nil

	case lActive && rActive:
		if lf.Hash == rf.Hash {
			if lf.Version == rf.Version {
				return nil
			}
			return adopt(path, maxVersion(lf.Version, rf.Version))
		}
		if mode == ModePush {
			if lf.Version > rf.Version || !diverged {
				return upload(path, lf.Version)
			}
			return conflict(path, ConflictConcurrentEdit,
				fmt.Sprintf("%s: local and remote both changed since last sync", path))
		}
		if rf.Version > lf.Version || !diverged {
			return download(path, rf.Version)
		}
		return conflict(path, ConflictConcurrentEdit,
			fmt.Sprintf("%s: local and remote both changed since last sync", path))

	case lDeleted && rActive:
		if mode == ModePush {
			if lf.Version > rf.Version {
				return deleteRemote(path, lf.Version)
			}
			return conflict(path, ConflictLocalDeleteRemoteEdit,
				fmt.Sprintf("%s: deleted locally but edited remotely", path))
		}
		if rf.Version > lf.Version {
			return download(path, rf.Version)
		}
		return conflict(path, ConflictLocalDeleteRemoteEdit,
			fmt.Sprintf("%s: deleted locally but edited remotely", path))

	case lDeleted && rDeleted:
		if lf.Version != rf.Version {
			return adopt(path, maxVersion(lf.Version, rf.Version))
		}
		return nil

	case lActive && rDeleted:
		if mode == ModePush {
			if lf.Version > rf.Version {
				return upload(path, lf.Version)
			}
			return conflict(path, ConflictRemoteDeleted,
				fmt.Sprintf("%s: deleted remotely", path))
		}
		if rf.Version > lf.Version {
			return deleteLocal(path, rf.Version)
		}
		return conflict(path, ConflictRemoteDeleted,
			fmt.Sprintf("%s: deleted remotely", path))

	default:
		return nil
	}
}

// overrideConflict applies a non-ask strategy to a conflict action,
// returning nil when the strategy leaves both sides untouched.
func overrideConflict(a *Action, lf, rf *syncstate.FileEntry, mode Mode, strategy ConflictStrategy) *Action {
	switch strategy {
	case StrategySkip:
		return nil

	case StrategyLocal:
		if mode != ModePush {
			return nil
		}
		switch a.ConflictKind {
		case ConflictConcurrentEdit, ConflictRemoteDeleted:
			return upload(a.Path, lf.Version)
		case ConflictLocalDeleteRemoteEdit:
			return deleteRemote(a.Path, lf.Version)
		}
		return nil

	case StrategyRemote:
		if mode != ModePull {
			return nil
		}
		switch a.ConflictKind {
		case ConflictConcurrentEdit, ConflictLocalDeleteRemoteEdit:
			return download(a.Path, rf.Version)
		case ConflictRemoteDeleted:
			return deleteLocal(a.Path, rf.Version)
		}
		return nil
	}
	return a
}

func upload(path string, version int64) *Action {
	return &Action{Kind: ActionUpload, Path: path, Direction: DirectionToRemote, Version: version}
}

func download(path string, version int64) *Action {
	return &Action{Kind: ActionDownload, Path: path, Direction: DirectionToLocal, Version: version}
}

func deleteRemote(path string, version int64) *Action {
	return &Action{Kind: ActionDeleteRemote, Path: path, Direction: DirectionToRemote, Version: version}
}

func deleteLocal(path string, version int64) *Action {
	return &Action{Kind: ActionDeleteLocal, Path: path, Direction: DirectionToLocal, Version: version}
}

func adopt(path string, version int64) *Action {
	return &Action{Kind: ActionAdoptVersion, Path: path, Version: version}
}

func conflict(path string, kind ConflictKind, explanation string) *Action {
	return &Action{Kind: ActionConflict, Path: path, ConflictKind: kind, Explanation: explanation}
}

func maxVersion(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
