package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"modelshelf/internal/api"
	"modelshelf/internal/browse"
	"modelshelf/internal/classify"
	"modelshelf/internal/config"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux.HandleFunc("/api/scan/start", srv.handleScanStart)
	mux.HandleFunc("/api/scan/status", srv.handleScanStatus)
	mux.HandleFunc("/api/scan/cancel", srv.handleScanCancel)
	mux.HandleFunc("/api/models", srv.handleModels)
	mux.HandleFunc("/api/models/used", srv.handleModelUsed)
	mux.HandleFunc("/api/settings", srv.handleSettings)
	mux.HandleFunc("/api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the bind port is 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ScanStartRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	snap, err := s.daemon.StartScan(r.Context(), scanner.Options{
		Folders:       req.Folders,
		Force:         req.Force,
		IncludeCached: req.IncludeCached,
	})
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, api.ScanStartResponse{
			SessionID: snap.SessionID,
			Total:     snap.Total,
		})
	case errors.Is(err, scanner.ErrScanActive):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scanner.ErrNoRoots), errors.Is(err, scanner.ErrNoCandidates):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(s.daemon.ScanStatus()))
}

func (s *apiServer) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cancelled := s.daemon.CancelScan()
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *apiServer) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query, err := modelQueryFromRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	models, err := s.daemon.Models(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromModels(models))
}

func (s *apiServer) handleModelUsed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ModelUsedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := s.daemon.RecordModelUse(r.Context(), req.Path); err != nil {
		if errors.Is(err, modelcache.ErrEntryNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromConfig(s.daemon.Config()))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.CacheHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHealth(health))
}

func modelQueryFromRequest(r *http.Request) (browse.Query, error) {
	values := r.URL.Query()
	query := browse.Query{
		Filter: browse.Filter{
			Search:             strings.TrimSpace(values.Get("search")),
			UpdateAvailable:    boolParam(values.Get("updates")),
			IncludeBlacklisted: boolParam(values.Get("blacklisted")),
		},
		Sort:       browse.SortKey(strings.TrimSpace(values.Get("sort"))),
		Descending: strings.EqualFold(values.Get("order"), "desc"),
	}
	if category := strings.TrimSpace(values.Get("category")); category != "" {
		query.Filter.Category = classify.Category(category)
		if !classify.Known(query.Filter.Category) {
			return browse.Query{}, fmt.Errorf("unknown category %q", category)
		}
	}
	if window := strings.TrimSpace(values.Get("used_within")); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d < 0 {
			return browse.Query{}, fmt.Errorf("invalid used_within %q", window)
		}
		query.Filter.UsedWithin = d
	}
	return query, nil
}

func boolParam(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
