// Package syncclient implements the client driver (spec §4.F): load local
// state, negotiate a plan with the server, execute transfers, and persist
// the resulting state.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/protocol"
	"github.com/gosyncbox/syncbox/internal/syncstate"
	"github.com/gosyncbox/syncbox/internal/wire"
)

// ErrConflicts is returned when the server reports unresolved conflicts
// under strategy "ask" (spec §6 exit code 2).
var ErrConflicts = errors.New("syncclient: unresolved conflicts")

// Config parameterizes one Driver.
type Config struct {
	ServerAddr       string
	Root             string
	StatePath        string
	IgnorePatterns   []string
	Mode             plan.Mode
	ConflictStrategy plan.ConflictStrategy
	Key              *wire.Key
	Compression      bool
	ChunkSize        int
	DialTimeout      time.Duration
}

// Result summarizes one completed (or conflicted) run.
type Result struct {
	Uploaded       []string
	Downloaded     []string
	Deleted        []string
	Conflicts      []protocol.ConflictEntry
	NewSyncVersion int64
}

// Driver runs one sync session against the configured server.
type Driver struct {
	cfg Config
}

// New constructs a Driver.
func New(cfg Config) *Driver {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Driver{cfg: cfg}
}

// Run loads local state, scans the root, negotiates and executes a plan,
// and persists the updated local state on success.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	tstart := time.Now()

	local, err := syncstate.Load(d.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load local state: %w", err)
	}

	scanner := syncstate.NewScanner(d.cfg.Root, d.cfg.IgnorePatterns)
	scanned, err := scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", d.cfg.Root, err)
	}
	local.Files = syncstate.Reconcile(local.Files, scanned, time.Now())

	conn, err := net.DialTimeout("tcp", d.cfg.ServerAddr, d.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.cfg.ServerAddr, err)
	}
	defer conn.Close()

	wc := wire.NewConn(conn, d.cfg.Key)
	wc.SetCompression(d.cfg.Compression)

	if err := protocol.SendJSON(wc, protocol.CmdHello, protocol.HelloPayload{
		ClientID: local.ClientID, ProtocolVersion: protocol.ProtocolVersion,
	}); err != nil {
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	cmd, err := protocol.RecvJSON(wc, nil)
	if err != nil {
		return nil, fmt.Errorf("recv HELLO ack: %w", err)
	}
	if cmd == protocol.CmdError {
		return nil, fmt.Errorf("server rejected HELLO")
	}

	if err := protocol.SendJSON(wc, protocol.CmdSyncRequest, protocol.SyncRequestPayload{
		Mode: d.cfg.Mode, LocalState: local, BaseVersion: local.BaseVersion, ConflictStrategy: d.cfg.ConflictStrategy,
	}); err != nil {
		return nil, fmt.Errorf("send SYNC_REQUEST: %w", err)
	}

	respCmd, respData, err := protocol.RecvRaw(wc)
	if err != nil {
		return nil, fmt.Errorf("recv plan: %w", err)
	}
	if respCmd == protocol.CmdConflict {
		var conflicts protocol.ConflictPayload
		if err := protocol.DecodeInto(respCmd, respData, &conflicts); err != nil {
			return nil, fmt.Errorf("decode conflicts: %w", err)
		}
		return &Result{Conflicts: conflicts.Conflicts}, ErrConflicts
	}
	if respCmd != protocol.CmdOK {
		return nil, fmt.Errorf("unexpected response to SYNC_REQUEST: %s", respCmd)
	}
	var rawPlan protocol.PlanPayload
	if err := protocol.DecodeInto(respCmd, respData, &rawPlan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	result := &Result{}
	switch d.cfg.Mode {
	case plan.ModePush:
		if err := d.executePush(wc, local, rawPlan, result); err != nil {
			return nil, err
		}
	case plan.ModePull:
		if err := d.executePull(wc, local, rawPlan, result); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", d.cfg.Mode)
	}

	if err := protocol.SendJSON(wc, protocol.CmdSyncComplete, protocol.SyncCompletePayload{}); err != nil {
		return nil, fmt.Errorf("send SYNC_COMPLETE: %w", err)
	}
	var ack protocol.SyncCompleteAckPayload
	cmd, err = protocol.RecvJSON(wc, &ack)
	if err != nil {
		return nil, fmt.Errorf("recv SYNC_COMPLETE ack: %w", err)
	}
	if cmd != protocol.CmdOK {
		return nil, fmt.Errorf("server rejected commit")
	}

	local.SyncVersion = ack.NewSyncVersion
	local.BaseVersion = ack.NewSyncVersion
	local.LastSyncTime = time.Now()
	if err := syncstate.Persist(local, d.cfg.StatePath); err != nil {
		return nil, fmt.Errorf("persist local state: %w", err)
	}

	result.NewSyncVersion = ack.NewSyncVersion
	slog.Info("sync complete", "mode", d.cfg.Mode, "took", time.Since(tstart),
		"uploaded", len(result.Uploaded), "downloaded", len(result.Downloaded), "deleted", len(result.Deleted),
		"sync_version", ack.NewSyncVersion,
	)
	return result, nil
}

func (d *Driver) executePush(wc *wire.Conn, local *syncstate.State, p protocol.PlanPayload, result *Result) error {
	for _, entry := range p.Transfers {
		if entry.Kind == plan.ActionAdoptVersion {
			if f := local.Files[entry.Path]; f != nil {
				f.Version = entry.Version
			}
			continue
		}
		body, err := os.ReadFile(filepath.Join(d.cfg.Root, entry.Path))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Path, err)
		}
		if err := protocol.SendFile(wc, entry.Path, body, d.cfg.ChunkSize); err != nil {
			return fmt.Errorf("upload %s: %w", entry.Path, err)
		}
		if _, err := protocol.RecvJSON(wc, nil); err != nil {
			return fmt.Errorf("ack for %s: %w", entry.Path, err)
		}
		result.Uploaded = append(result.Uploaded, entry.Path)
		slog.Debug("uploaded", "path", entry.Path, "size", humanize.Bytes(uint64(len(body))))
	}

	for _, entry := range p.Deletes {
		if err := protocol.SendJSON(wc, protocol.CmdDeleteFile, protocol.DeleteFilePayload{Path: entry.Path, Version: entry.Version}); err != nil {
			return fmt.Errorf("delete remote %s: %w", entry.Path, err)
		}
		if _, err := protocol.RecvJSON(wc, nil); err != nil {
			return fmt.Errorf("ack for delete %s: %w", entry.Path, err)
		}
		result.Deleted = append(result.Deleted, entry.Path)
	}
	return nil
}

func (d *Driver) executePull(wc *wire.Conn, local *syncstate.State, p protocol.PlanPayload, result *Result) error {
	for _, entry := range p.Transfers {
		if entry.Kind == plan.ActionAdoptVersion {
			if f := local.Files[entry.Path]; f != nil {
				f.Version = entry.Version
			}
			continue
		}
		path, body, err := protocol.RecvFile(wc)
		if err != nil {
			_ = protocol.SendJSON(wc, protocol.CmdError, protocol.ErrorPayload{Message: err.Error()})
			continue
		}
		if err := writeAtomic(filepath.Join(d.cfg.Root, path), body); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		local.Files[path] = &syncstate.FileEntry{
			Path: path, Hash: protocol.HashBytes(body), Size: int64(len(body)), Version: entry.Version, Status: syncstate.StatusActive,
		}
		if err := protocol.SendJSON(wc, protocol.CmdOK, nil); err != nil {
			return err
		}
		result.Downloaded = append(result.Downloaded, path)
		slog.Debug("downloaded", "path", path, "size", humanize.Bytes(uint64(len(body))))
	}

	for _, entry := range p.Deletes {
		cmd, del, err := recvDelete(wc)
		if err != nil {
			return err
		}
		if cmd != protocol.CmdDeleteFile {
			return fmt.Errorf("expected DELETE_FILE, got %s", cmd)
		}
		target := filepath.Join(d.cfg.Root, del.Path)
		if removeErr := os.Remove(target); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove %s: %w", del.Path, removeErr)
		}
		now := time.Now()
		local.Files[del.Path] = &syncstate.FileEntry{Path: del.Path, Status: syncstate.StatusDeleted, Version: entry.Version, DeletedAt: &now}
		if err := protocol.SendJSON(wc, protocol.CmdOK, nil); err != nil {
			return err
		}
		result.Deleted = append(result.Deleted, del.Path)
	}
	return nil
}

func recvDelete(wc *wire.Conn) (protocol.Command, protocol.DeleteFilePayload, error) {
	var del protocol.DeleteFilePayload
	cmd, err := protocol.RecvJSON(wc, &del)
	return cmd, del, err
}

// writeAtomic writes body to path via temp-file-then-rename so readers
// never observe a torn file (spec §4.F, §5 shared-resources note).
func writeAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
