package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"modelshelf/internal/api"
	"modelshelf/internal/browse"
	"modelshelf/internal/classify"
	"modelshelf/internal/daemon"
	"modelshelf/internal/logging"
	"modelshelf/internal/scanner"
)

// serviceName is the RPC receiver name shared by server and client.
const serviceName = "Modelshelf"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. OnStop, when
// set, is invoked after a Stop request so the host process can exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onStop func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{
		daemon: d,
		logger: logging.NewComponentLogger(logger, "ipc"),
		ctx:    ctx,
		onStop: onStop,
	}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun modelshelf stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

func (s *service) ScanStart(req ScanStartRequest, resp *ScanStartResponse) error {
	s.logger.Debug("scan start requested",
		logging.Int("folder_count", len(req.Folders)),
		logging.Bool("force", req.Force))
	snap, err := s.daemon.StartScan(s.ctx, scanner.Options{
		Folders:       req.Folders,
		Force:         req.Force,
		IncludeCached: req.IncludeCached,
	})
	if err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.SessionID = snap.SessionID
	resp.Total = snap.Total
	s.logger.Info("scan started via IPC",
		logging.String(logging.FieldEventType, "scan_start"),
		logging.String(logging.FieldSessionID, snap.SessionID),
		logging.Int("total", snap.Total))
	return nil
}

func (s *service) ScanStatus(_ ScanStatusRequest, resp *ScanStatusResponse) error {
	resp.Scan = api.FromSnapshot(s.daemon.ScanStatus())
	return nil
}

func (s *service) ScanCancel(_ ScanCancelRequest, resp *ScanCancelResponse) error {
	resp.Cancelled = s.daemon.CancelScan()
	if resp.Cancelled {
		s.logger.Info("scan cancelled via IPC",
			logging.String(logging.FieldEventType, "scan_cancel"))
	}
	return nil
}

func (s *service) ScanAcknowledge(_ ScanAcknowledgeRequest, resp *ScanAcknowledgeResponse) error {
	resp.Acknowledged = s.daemon.AcknowledgeScan()
	return nil
}

func (s *service) ModelsList(req ModelsListRequest, resp *ModelsListResponse) error {
	query := browse.Query{
		Filter: browse.Filter{
			Search:             req.Search,
			UpdateAvailable:    req.UpdatesOnly,
			IncludeBlacklisted: req.IncludeBlacklisted,
		},
		Sort:       browse.SortKey(req.Sort),
		Descending: req.Descending,
	}
	if req.Category != "" {
		category := classify.Category(req.Category)
		if !classify.Known(category) {
			return fmt.Errorf("unknown category %q", req.Category)
		}
		query.Filter.Category = category
	}
	if req.UsedWithinHours > 0 {
		query.Filter.UsedWithin = time.Duration(req.UsedWithinHours) * time.Hour
	}
	models, err := s.daemon.Models(s.ctx, query)
	if err != nil {
		return err
	}
	resp.Models = api.FromModels(models).Models
	return nil
}

func (s *service) CacheHealth(_ CacheHealthRequest, resp *CacheHealthResponse) error {
	health, err := s.daemon.CacheHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.Health = api.FromHealth(health)
	return nil
}

func (s *service) CacheClear(_ CacheClearRequest, resp *CacheClearResponse) error {
	s.logger.Debug("cache clear requested")
	removed, err := s.daemon.ClearCache(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("cache cleared",
		logging.String(logging.FieldEventType, "cache_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) CachePrune(_ CachePruneRequest, resp *CachePruneResponse) error {
	s.logger.Debug("cache prune requested")
	pruned, err := s.daemon.PruneCache(s.ctx)
	if err != nil {
		return err
	}
	resp.Pruned = pruned
	s.logger.Info("cache pruned",
		logging.String(logging.FieldEventType, "cache_prune"),
		logging.Int64("pruned_count", pruned))
	return nil
}

func (s *service) SettingsGet(_ SettingsRequest, resp *SettingsResponse) error {
	resp.Settings = api.FromConfig(s.daemon.Config())
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.ChangesPending = status.ChangesPending
	resp.Scan = api.FromSnapshot(status.Scan)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	resp.Stopped = true
	if s.onStop != nil {
		// Defer shutdown so the RPC response reaches the client first.
		go s.onStop()
	}
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}
