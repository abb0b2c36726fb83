package syncserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gosyncbox/syncbox/internal/audit"
	"github.com/gosyncbox/syncbox/internal/wire"
)

// Config parameterizes a Server.
type Config struct {
	Addr        string
	StatePath   string
	FilesDir    string
	AuditDBPath string
	Key         *wire.Key
	Compression bool
	IdleTimeout time.Duration
	MaxWorkers  int
}

// DefaultIdleTimeout matches spec §5's "configurable idle timeout (default
// 60 s)".
const DefaultIdleTimeout = 60 * time.Second

// Server accepts connections and serializes mutating sessions against the
// authoritative state (spec §4.E).
type Server struct {
	cfg      Config
	listener net.Listener
	store    *Store
	files    *FileStore
	audit    *audit.Log
	pool     *pond.WorkerPool
}

// New constructs a Server, loading the authoritative state and opening the
// audit ledger.
func New(cfg Config) (*Server, error) {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.FilesDir == "" {
		cfg.FilesDir = filepath.Join(filepath.Dir(cfg.StatePath), "files")
	}

	store, err := NewStore(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	files, err := NewFileStore(cfg.FilesDir)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	return &Server{
		cfg:   cfg,
		store: store,
		files: files,
		audit: auditLog,
		pool:  pond.New(cfg.MaxWorkers, 0, pond.MinWorkers(1)),
	}, nil
}

// Start listens on cfg.Addr and serves sessions until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	slog.Info("syncd server start", "addr", s.cfg.Addr)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.acceptLoop(egCtx)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("syncd context cancelled, shutting down")
		return s.Stop()
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		slog.Error("syncd server failure", "error", err)
		return err
	}
	slog.Info("syncd server stop")
	return nil
}

// Stop closes the listener and drains the worker pool.
func (s *Server) Stop() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.pool.StopAndWait()
	if s.audit != nil {
		_ = s.audit.Close()
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.pool.Submit(func() {
			s.handleConn(ctx, conn)
		})
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.cfg.IdleTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}

	id := sessionID()
	wc := wire.NewConn(conn, s.cfg.Key)
	wc.SetCompression(s.cfg.Compression)
	wc.SetIdleTimeout(s.cfg.IdleTimeout)
	sess := NewSession(wc, s.store, s.files, s.audit, id)

	if err := sess.Run(ctx); err != nil {
		slog.Warn("session failed", "session", id, "error", err)
		return
	}
	slog.Info("session completed", "session", id)
}

func sessionID() string {
	return uuid.NewString()
}
