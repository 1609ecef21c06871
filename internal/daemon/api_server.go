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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"artdedup/internal/api"
	"artdedup/internal/config"
	"artdedup/internal/logging"
	"artdedup/internal/metrics"
	"artdedup/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	svc     *api.Service
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		svc:    d.service,
	}

	mux := http.NewServeMux()
	token := strings.TrimSpace(cfg.Paths.APIToken)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(token, h))
	}
	handle("GET /api/status", srv.handleStatus)
	handle("POST /api/scans", srv.handleStartScan)
	handle("GET /api/scans", srv.handleListScans)
	handle("GET /api/scans/{handle}", srv.handleScanStatus)
	handle("POST /api/scans/{handle}/cancel", srv.handleCancelScan)
	handle("POST /api/artworks/{id}/check", srv.handleCheckRecord)
	handle("GET /api/candidates", srv.handleListCandidates)
	handle("GET /api/candidates/{id}", srv.handleGetCandidate)
	handle("POST /api/candidates/{id}/resolve", srv.handleResolve)
	handle("POST /api/candidates/{id}/reset", srv.handleReset)
	handle("POST /api/candidates/bulk-resolve", srv.handleBulkResolve)
	handle("POST /api/merges", srv.handleMerge)
	handle("GET /api/merges", srv.handleMergeHistory)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv.handler = srv.instrument(mux)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with a request id and records API metrics.
func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		req := r.WithContext(services.WithRequestID(r.Context(), rid))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		endpoint := req.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, endpoint, rec.status, time.Since(start))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req api.ScanRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.svc.StartScan(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, status)
}

func (s *apiServer) handleListScans(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ScanListResponse{Scans: s.svc.ListScans()})
}

func (s *apiServer) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.ScanStatus(r.PathValue("handle"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.CancelScan(r.PathValue("handle"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleCheckRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.svc.CheckRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := api.CandidateQuery{
		Status: query.Get("status"),
		Method: query.Get("method"),
	}
	var err error
	if q.MinScore, err = floatParam(query.Get("min_score")); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid min_score")
		return
	}
	if q.ArtworkID, err = int64Param(query.Get("artwork_id")); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid artwork_id")
		return
	}
	if q.Page, err = intParam(query.Get("page")); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid page")
		return
	}
	if q.PageSize, err = intParam(query.Get("page_size")); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid page_size")
		return
	}
	resp, err := s.svc.ListCandidates(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.svc.GetCandidate(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req api.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.ResolveCandidate(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.ResetCandidate(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleBulkResolve(w http.ResponseWriter, r *http.Request) {
	var req api.BulkResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.BulkResolve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req api.MergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.svc.Merge(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleMergeHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid limit")
		return
	}
	merges, err := s.svc.MergeHistory(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MergeHistoryResponse{Merges: merges})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid id")
		return 0, false
	}
	return id, true
}

func intParam(value string) (int, error) {
	if value = strings.TrimSpace(value); value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func int64Param(value string) (int64, error) {
	if value = strings.TrimSpace(value); value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func floatParam(value string) (float64, error) {
	if value = strings.TrimSpace(value); value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

// statusForError maps error kinds onto HTTP status codes.
func statusForError(err error) int {
	switch services.Kind(err) {
	case "record_not_found", "scan_not_found":
		return http.StatusNotFound
	case "validation", "invalid_field_policy":
		return http.StatusBadRequest
	case "merge_conflict", "invalid_transition", "target_no_longer_exists", "duplicate_pair_conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, services.Kind(err), err.Error())
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

func (s *apiServer) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
