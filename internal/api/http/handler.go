package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vexdb/vexdb/internal/domain"
	"github.com/vexdb/vexdb/internal/engine"
	"github.com/vexdb/vexdb/pkg/log"
	"github.com/vexdb/vexdb/pkg/metrics"
)

// Handler is the stateless RPC facade over the store. It decodes requests,
// delegates validation to the engine, and maps the error taxonomy 1:1 onto
// HTTP status codes: InvalidArgument 400, NotFound 404, AlreadyExists 409,
// everything else 500.
type Handler struct {
	logger  *slog.Logger
	store   *engine.Store
	metrics *metrics.Metrics
}

// NewHandler creates a new HTTP handler
func NewHandler(store *engine.Store, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  log.Logger("http.handler"),
		store:   store,
		metrics: m,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Collection lifecycle
	mux.HandleFunc("POST /api/v1/collections", h.CreateCollection)
	mux.HandleFunc("GET /api/v1/collections", h.ListCollections)
	mux.HandleFunc("GET /api/v1/collections/{name}", h.DescribeCollection)
	mux.HandleFunc("DELETE /api/v1/collections/{name}", h.DropCollection)

	// Point operations
	mux.HandleFunc("POST /api/v1/collections/{name}/points", h.Upsert)
	mux.HandleFunc("POST /api/v1/collections/{name}/points/delete", h.DeletePoints)
	mux.HandleFunc("POST /api/v1/collections/{name}/points/query", h.Query)

	// Liveness
	mux.HandleFunc("GET /api/v1/ping", h.Ping)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// CreateCollection handles POST /api/v1/collections
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, "CreateCollection", err)
		return
	}

	if err := h.store.CreateCollection(r.Context(), &req); err != nil {
		h.writeError(w, "CreateCollection", err)
		return
	}

	info, err := h.store.DescribeCollection(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, "CreateCollection", err)
		return
	}
	h.writeData(w, "CreateCollection", http.StatusCreated, info)
}

// ListCollections handles GET /api/v1/collections
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, "ListCollections", http.StatusOK, h.store.ListCollections(r.Context()))
}

// DescribeCollection handles GET /api/v1/collections/{name}
func (h *Handler) DescribeCollection(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.DescribeCollection(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, "DescribeCollection", err)
		return
	}
	h.writeData(w, "DescribeCollection", http.StatusOK, info)
}

// DropCollection handles DELETE /api/v1/collections/{name}
func (h *Handler) DropCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.DropCollection(r.Context(), name); err != nil {
		h.writeError(w, "DropCollection", err)
		return
	}
	h.writeData(w, "DropCollection", http.StatusOK, map[string]string{"dropped": name})
}

// Upsert handles POST /api/v1/collections/{name}/points
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, "Upsert", err)
		return
	}

	upserted, err := h.store.Upsert(r.Context(), r.PathValue("name"), req.Points)
	if err != nil {
		h.writeError(w, "Upsert", err)
		return
	}
	h.writeData(w, "Upsert", http.StatusOK, domain.UpsertResponse{Upserted: upserted})
}

// DeletePoints handles POST /api/v1/collections/{name}/points/delete
func (h *Handler) DeletePoints(w http.ResponseWriter, r *http.Request) {
	var req domain.DeletePointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, "DeletePoints", err)
		return
	}

	deleted, err := h.store.DeletePoints(r.Context(), r.PathValue("name"), req.IDs)
	if err != nil {
		h.writeError(w, "DeletePoints", err)
		return
	}
	h.writeData(w, "DeletePoints", http.StatusOK, domain.DeletePointsResponse{Deleted: deleted})
}

// Query handles POST /api/v1/collections/{name}/points/query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, "Query", err)
		return
	}

	hits, err := h.store.Query(r.Context(), r.PathValue("name"), &req)
	if err != nil {
		h.writeError(w, "Query", err)
		return
	}
	h.writeData(w, "Query", http.StatusOK, domain.QueryResponse{Hits: hits})
}

// Ping handles GET /api/v1/ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("message")
	h.writeData(w, "Ping", http.StatusOK, domain.PingResponse{Message: fmt.Sprintf("pong: %s", msg)})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
		},
	})
}

func statusFromCode(code string) int {
	switch code {
	case "invalid_argument":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "already_exists":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeData(w http.ResponseWriter, method string, status int, data any) {
	h.metrics.RecordRequest(method, "ok")
	h.writeJSON(w, status, Response{
		Success: true,
		Data:    data,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, method string, err error) {
	code := domain.Code(err)
	if code == "internal" {
		h.logger.Error(method+" failed", "error", err)
	}
	h.metrics.RecordRequest(method, code)
	h.writeJSON(w, statusFromCode(code), Response{
		Success: false,
		Error:   err.Error(),
		Code:    code,
	})
}

// writeDecodeError reports an unreadable request body. Decode failures never
// reach the engine, so they are classified here as invalid_argument.
func (h *Handler) writeDecodeError(w http.ResponseWriter, method string, err error) {
	h.metrics.RecordRequest(method, "invalid_argument")
	h.writeJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Error:   "invalid request body: " + err.Error(),
		Code:    "invalid_argument",
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
