// Package api exposes the pipeline scheduler over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"substream/internal/fileutil"
	"substream/internal/logging"
	"substream/internal/workflow"
)

// Scheduler is the slice of the workflow manager the HTTP surface needs.
type Scheduler interface {
	StartPipeline(ctx context.Context, filePath, ownerID string) (string, error)
	Status(ctx context.Context, handle string) (*workflow.InstanceStatus, error)
	List(ctx context.Context, limit int) ([]workflow.InstanceStatus, error)
	ProcessBatch(ctx context.Context, ownerID string, files []string) error
	Healthy(ctx context.Context) error
}

// Pinger reports reachability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProcessRequest starts one pipeline.
type ProcessRequest struct {
	Path    string `json:"path"`
	OwnerID string `json:"ownerId"`
}

// ProcessResponse carries the instance handle.
type ProcessResponse struct {
	ID string `json:"id"`
}

// ScanRequest batch-processes a directory.
type ScanRequest struct {
	Dir     string `json:"dir"`
	OwnerID string `json:"ownerId"`
}

// ScanResponse lists the files handed to the batch coordinator.
type ScanResponse struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// QueueResponse lists recent instance statuses.
type QueueResponse struct {
	Items []workflow.InstanceStatus `json:"items"`
}

// HealthResponse reports component reachability.
type HealthResponse struct {
	Status     string `json:"status"`
	Queue      string `json:"queue"`
	Catalog    string `json:"catalog,omitempty"`
	QueueError string `json:"queueError,omitempty"`
}

// Server serves the pipeline API.
type Server struct {
	bind      string
	scheduler Scheduler
	catalog   Pinger
	metrics   http.Handler
	logger    *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds the API server. The catalog pinger and metrics handler
// are optional.
func NewServer(bind string, scheduler Scheduler, catalog Pinger, metrics http.Handler, logger *slog.Logger) (*Server, error) {
	if strings.TrimSpace(bind) == "" {
		return nil, errors.New("api: bind address is required")
	}
	if scheduler == nil {
		return nil, errors.New("api: scheduler is required")
	}

	srv := &Server{
		bind:      strings.TrimSpace(bind),
		scheduler: scheduler,
		catalog:   catalog,
		metrics:   metrics,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
	srv.server = &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Routes returns the handler tree, exposed for in-process tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/process", s.handleProcess)
	mux.HandleFunc("/api/v1/process/", s.handleProcessStatus)
	mux.HandleFunc("/api/v1/scan", s.handleScan)
	mux.HandleFunc("/api/v1/queue", s.handleQueue)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start begins serving on the bind address.
func (s *Server) Start(ctx context.Context) error {
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

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
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

// Addr returns the bound listen address, useful when binding port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || req.OwnerID == "" {
		s.writeError(w, http.StatusBadRequest, "path and ownerId are required")
		return
	}

	handle, err := s.scheduler.StartPipeline(r.Context(), req.Path, req.OwnerID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, ProcessResponse{ID: handle})
}

func (s *Server) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handle := strings.TrimPrefix(r.URL.Path, "/api/v1/process/")
	if handle == "" || strings.Contains(handle, "/") {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}

	status, err := s.scheduler.Status(r.Context(), handle)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status == nil {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dir == "" || req.OwnerID == "" {
		s.writeError(w, http.StatusBadRequest, "dir and ownerId are required")
		return
	}

	files, err := fileutil.ListMediaFiles(req.Dir)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(files) > 0 {
		// The batch runs detached; callers follow progress via the queue.
		go func() {
			if err := s.scheduler.ProcessBatch(context.Background(), req.OwnerID, files); err != nil {
				s.logger.Error("batch failed", logging.String("dir", req.Dir), logging.Error(err))
			}
		}()
	}
	s.writeJSON(w, http.StatusAccepted, ScanResponse{Files: files, Count: len(files)})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.scheduler.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, QueueResponse{Items: items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Status: "ok", Queue: "ok"}
	code := http.StatusOK
	if err := s.scheduler.Healthy(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Queue = "unreachable"
		resp.QueueError = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.catalog != nil {
		resp.Catalog = "ok"
		if err := s.catalog.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Catalog = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
