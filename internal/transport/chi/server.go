// Package chi implements the HTTP API over the go-chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/index"
	logpkg "github.com/lexivec/lexivec/internal/logger"
	healthuc "github.com/lexivec/lexivec/internal/usecase/health"
	ingestuc "github.com/lexivec/lexivec/internal/usecase/ingest"
)

const maxBatchSize = 128

// Error response codes returned to API clients.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeIndexNotFound      = "index_not_found"
	codeUnsupportedFeature = "unsupported_feature"
	codeTooManyFields      = "too_many_fields"
	codeModelError         = "model_error"
	codeSchemaLockTimeout  = "schema_lock_timeout"
	codeInternalError      = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the ingestion API.
type Server struct {
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest: ingest,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(domain.ErrUnsupportedFeature, http.StatusBadRequest, codeUnsupportedFeature),
		sentinelHandler(domain.ErrTooManyFields, http.StatusBadRequest, codeTooManyFields),
		sentinelHandler(domain.ErrDocumentParsing, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrModel, http.StatusBadGateway, codeModelError),
		sentinelHandler(domain.ErrLockTimeout, http.StatusConflict, codeSchemaLockTimeout),
	}
	return s
}

// Register mounts all routes onto the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/v1/indexes", s.CreateIndex)
	r.Post("/api/v1/indexes/{index}/documents", s.AddDocuments)
	r.Patch("/api/v1/indexes/{index}/documents", s.PartialUpdateDocuments)
	r.Delete("/api/v1/indexes/{index}/documents", s.DeleteAllDocuments)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type createIndexRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	CompatVersion string `json:"compatVersion"`
}

type indexResponse struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	CompatVersion string `json:"compatVersion"`
	Version       int    `json:"version"`
}

// CreateIndex handles POST /api/v1/indexes.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Index name is required")
		return
	}
	if req.CompatVersion == "" {
		req.CompatVersion = index.PartialUpdateSupportVersion
	}

	idx, err := s.ingest.CreateIndex(r.Context(), req.Name, index.Type(req.Type), req.CompatVersion)
	if err != nil {
		var dbErr *db.Error
		if isSentinel(err) || errors.As(err, &dbErr) {
			s.handleDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, indexResponse{
		Name:          idx.Name(),
		Type:          string(idx.Type()),
		CompatVersion: idx.CompatVersion(),
		Version:       idx.Version(),
	})
}

type addDocumentsRequest struct {
	Documents    []map[string]any `json:"documents"`
	TensorFields []string         `json:"tensorFields"`
}

// AddDocuments handles POST /api/v1/indexes/{index}/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	indexName := chi.URLParam(r, "index")

	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must not exceed "+strconv.Itoa(maxBatchSize))
		return
	}

	resp, err := s.ingest.AddDocuments(r.Context(), indexName, req.Documents, req.TensorFields)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type updateDocumentsRequest struct {
	Documents []map[string]any `json:"documents"`
}

// PartialUpdateDocuments handles PATCH /api/v1/indexes/{index}/documents.
func (s *Server) PartialUpdateDocuments(w http.ResponseWriter, r *http.Request) {
	indexName := chi.URLParam(r, "index")

	var req updateDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must not exceed "+strconv.Itoa(maxBatchSize))
		return
	}

	resp, err := s.ingest.PartialUpdateDocuments(r.Context(), indexName, req.Documents)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type deleteAllResponse struct {
	IndexName string `json:"indexName"`
	Deleted   int    `json:"deleted"`
}

// DeleteAllDocuments handles DELETE /api/v1/indexes/{index}/documents.
func (s *Server) DeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	indexName := chi.URLParam(r, "index")

	count, err := s.ingest.DeleteAllDocuments(r.Context(), indexName)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteAllResponse{IndexName: indexName, Deleted: count})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

var sentinels = []error{
	domain.ErrIndexNotFound,
	domain.ErrUnsupportedFeature,
	domain.ErrTooManyFields,
	domain.ErrDocumentParsing,
	domain.ErrModel,
	domain.ErrLockTimeout,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func isSentinel(err error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The request-scoped logger carries the request id set by the middleware.
	logpkg.FromContext(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

