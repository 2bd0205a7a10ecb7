// Package daemon implements the long-lived background process that
// amortizes filesystem watching across repeated `turbine run` invocations
// (spec's daemon mode): one watcher per repo, queried over a local socket
// instead of re-walking the tree on every invocation.
//
// The teacher's daemon speaks gRPC; building stubs needs a protoc
// toolchain this environment doesn't have, so this package frames plain
// JSON requests over the same unix-domain-socket transport instead
// (documented as a scoped substitution in DESIGN.md). The lifecycle
// pattern (pidfile lock, idle-timeout self-shutdown, one-per-repo socket
// path derived from a hash of the repo root) follows the teacher exactly.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nightlyone/lockfile"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// DefaultIdleTimeout is how long the daemon waits without a request
// before shutting itself down.
const DefaultIdleTimeout = 4 * time.Hour

// Server is one running daemon instance for a single repo.
type Server struct {
	repoRoot    turbopath.AbsoluteSystemPath
	idleTimeout time.Duration
	version     string
	logger      hclog.Logger

	watcher *watcher
	startAt time.Time

	mu       sync.Mutex
	lockfile lockfile.Lockfile
	listener net.Listener
}

// New prepares a Server for repoRoot. Call Serve to actually listen and
// block.
func New(repoRoot turbopath.AbsoluteSystemPath, version string, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	var out io.Writer = os.Stderr
	logPath := LogPath(repoRoot)
	if err := logPath.EnsureDir(); err == nil {
		if f, err := logPath.OpenFile(os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "turbine-daemon",
		Level:  hclog.Info,
		Output: out,
	})
	return &Server{repoRoot: repoRoot, idleTimeout: idleTimeout, version: version, logger: logger}
}

// ErrAlreadyRunning is returned when another daemon already holds this
// repo's pidfile lock.
var ErrAlreadyRunning = fmt.Errorf("a turbine daemon is already running for this repo")

// Serve acquires the pidfile lock, starts the filesystem watcher, and
// accepts connections until ctx is cancelled, a client calls Shutdown, or
// the idle timeout elapses.
func (s *Server) Serve(ctx context.Context) error {
	pidPath := PIDPath(s.repoRoot)
	if err := pidPath.EnsureDir(); err != nil {
		return err
	}
	lock, err := lockfile.New(pidPath.ToString())
	if err != nil {
		return err
	}
	if err := lock.TryLock(); err != nil {
		s.logger.Debug("pidfile already held", "path", pidPath.ToString())
		return ErrAlreadyRunning
	}
	s.lockfile = lock
	defer func() { _ = lock.Unlock() }()

	w, err := newWatcher(s.repoRoot)
	if err != nil {
		return err
	}
	s.watcher = w
	defer func() { _ = w.Close() }()

	sockPath := SocketPath(s.repoRoot)
	if err := sockPath.EnsureDir(); err != nil {
		return err
	}
	_ = os.Remove(sockPath.ToString())
	ln, err := net.Listen("unix", sockPath.ToString())
	if err != nil {
		return err
	}
	s.listener = ln
	defer func() { _ = ln.Close() }()

	s.startAt = time.Now()
	s.logger.Info("daemon started", "version", s.version, "socket", sockPath.ToString())
	defer s.logger.Info("daemon stopped")

	shutdownCh := make(chan struct{})
	idleTimer := time.NewTimer(s.idleTimeout)
	defer idleTimer.Stop()
	activity := make(chan struct{}, 16)

	connCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			connCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-acceptErrCh:
			s.logger.Error("accept failed", "error", err)
			return err
		case <-shutdownCh:
			return nil
		case <-idleTimer.C:
			return nil
		case conn := <-connCh:
			go s.handle(conn, shutdownCh, activity)
		case <-activity:
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(s.idleTimeout)
		}
	}
}

func (s *Server) handle(conn net.Conn, shutdownCh chan struct{}, activity chan<- struct{}) {
	defer func() { _ = conn.Close() }()
	for {
		var req Request
		if err := readMessage(conn, &req); err != nil {
			return
		}
		select {
		case activity <- struct{}{}:
		default:
		}

		resp := s.dispatch(req)
		if err := writeMessage(conn, resp); err != nil {
			return
		}
		if req.Method == MethodShutdown {
			select {
			case shutdownCh <- struct{}{}:
			default:
			}
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.logger.Debug("request", "method", req.Method)
	switch req.Method {
	case MethodHello:
		var p HelloParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errResponse(err)
		}
		if p.Version != s.version {
			return errResponse(fmt.Errorf("version mismatch: daemon is %s, client is %s", s.version, p.Version))
		}
		return okResponse(struct{}{})

	case MethodNotifyOutputsWritten:
		var p NotifyOutputsWrittenParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errResponse(err)
		}
		s.watcher.markWritten(p.Hash, p.Package, p.Globs)
		return okResponse(struct{}{})

	case MethodGetChangedOutputs:
		var p GetChangedOutputsParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errResponse(err)
		}
		changed := s.watcher.getChangedOutputs(p.Hash, p.Package, p.Globs)
		return okResponse(GetChangedOutputsResult{Changed: changed})

	case MethodStatus:
		return okResponse(StatusResult{
			UptimeSeconds: int(time.Since(s.startAt).Seconds()),
			WatchedDirs:   s.watcher.watchedDirs(),
		})

	case MethodShutdown:
		return okResponse(struct{}{})

	default:
		return Response{Error: fmt.Sprintf("daemon: unknown method %q", req.Method)}
	}
}

func okResponse(v interface{}) Response {
	body, err := json.Marshal(v)
	if err != nil {
		return errResponse(err)
	}
	return Response{Result: body}
}

func errResponse(err error) Response {
	return Response{Error: err.Error()}
}
