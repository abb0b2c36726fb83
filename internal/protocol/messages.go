package protocol

import (
	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/syncstate"
)

// HelloPayload is the HELLO command body (C→S).
type HelloPayload struct {
	ClientID        string `json:"client_id"`
	ProtocolVersion int    `json:"protocol_version"`
}

// ErrorPayload is the ERROR command body (either direction).
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConflictEntry mirrors one plan.Action of kind ActionConflict for the wire.
type ConflictEntry struct {
	Path        string             `json:"path"`
	Kind        plan.ConflictKind  `json:"kind"`
	Explanation string             `json:"explanation"`
}

// ConflictPayload is the CONFLICT command body (S→C).
type ConflictPayload struct {
	Conflicts []ConflictEntry `json:"conflicts"`
}

// SyncRequestPayload is the SYNC_REQUEST command body (C→S). ConflictStrategy
// carries the session's configured resolution policy so the server can
// build the plan accordingly (spec §4.C).
type SyncRequestPayload struct {
	Mode             plan.Mode              `json:"mode"`
	LocalState       *syncstate.State       `json:"local_state"`
	BaseVersion      int64                  `json:"base_version"`
	ConflictStrategy plan.ConflictStrategy  `json:"conflict_strategy"`
}

// PlanEntry mirrors one transfer/delete plan.Action for the wire.
type PlanEntry struct {
	Kind      plan.ActionKind  `json:"kind"`
	Path      string           `json:"path"`
	Direction plan.Direction   `json:"direction,omitempty"`
	Version   int64            `json:"version,omitempty"`
}

// PlanPayload is the OK{plan} body sent after PLAN_NEGOTIATED.
type PlanPayload struct {
	Transfers []PlanEntry `json:"transfers"`
	Deletes   []PlanEntry `json:"deletes"`
}

// PlanPayloadFrom converts a computed plan.Plan into its wire form.
func PlanPayloadFrom(p *plan.Plan) PlanPayload {
	out := PlanPayload{
		Transfers: make([]PlanEntry, 0, len(p.Transfers)),
		Deletes:   make([]PlanEntry, 0, len(p.Deletes)),
	}
	for _, a := range p.Transfers {
		out.Transfers = append(out.Transfers, PlanEntry{Kind: a.Kind, Path: a.Path, Direction: a.Direction, Version: a.Version})
	}
	for _, a := range p.Deletes {
		out.Deletes = append(out.Deletes, PlanEntry{Kind: a.Kind, Path: a.Path, Direction: a.Direction, Version: a.Version})
	}
	return out
}

// ConflictPayloadFrom converts a plan's conflict set into its wire form.
func ConflictPayloadFrom(p *plan.Plan) ConflictPayload {
	out := ConflictPayload{Conflicts: make([]ConflictEntry, 0, len(p.Conflicts))}
	for _, a := range p.Conflicts {
		out.Conflicts = append(out.Conflicts, ConflictEntry{Path: a.Path, Kind: a.ConflictKind, Explanation: a.Explanation})
	}
	return out
}

// FileHeader precedes a large file's chunk stream (spec §4.D file
// transfer modes, size > 1 MiB).
type FileHeader struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
	Chunks int    `json:"chunks"`
}

// SmallFilePayload is a whole-file frame for bodies ≤ 1 MiB.
type SmallFilePayload struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Body []byte `json:"body"`
}

// DeleteFilePayload is the DELETE_FILE command body (either direction).
type DeleteFilePayload struct {
	Path    string `json:"path"`
	Version int64  `json:"version"`
}

// SyncCompletePayload is the SYNC_COMPLETE command body (C→S).
type SyncCompletePayload struct {
	NewStateDigest string `json:"new_state_digest"`
}

// SyncCompleteAckPayload is the OK reply to SYNC_COMPLETE.
type SyncCompleteAckPayload struct {
	NewSyncVersion int64 `json:"new_sync_version"`
}
