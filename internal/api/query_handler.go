package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tenantql/internal/core"
	"tenantql/internal/llm"
	"tenantql/internal/service"
)

type QueryHandler struct {
	executor     *service.TenantQueryExecutor
	llmSvc       *llm.Service
	logRepo      core.QueryLogRepository
	defaultLimit int
}

func NewQueryHandler(executor *service.TenantQueryExecutor, llmSvc *llm.Service, logRepo core.QueryLogRepository, defaultLimit int) *QueryHandler {
	return &QueryHandler{executor: executor, llmSvc: llmSvc, logRepo: logRepo, defaultLimit: defaultLimit}
}

func (h *QueryHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/sql", h.ExecuteSQL)
	r.Post("/llm", h.ExecuteLLM)
	r.Get("/logs", h.ListLogs)
	r.Delete("/logs", h.DeleteAllLogs)
	r.Delete("/logs/{logID}", h.DeleteLog)
	r.Get("/sample-data/{tableName}", h.SampleData)
	return r
}

// ExecuteSQL always answers 200 with a structured result; failures are
// reported via success=false so clients can render them gracefully.
func (h *QueryHandler) ExecuteSQL(w http.ResponseWriter, r *http.Request) {
	connectionID := r.URL.Query().Get("connection_id")
	if connectionID == "" {
		writeError(w, http.StatusBadRequest, "connection_id query parameter is required")
		return
	}

	var in struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Query == "" {
		writeError(w, http.StatusBadRequest, "Request body must contain a query")
		return
	}

	result := h.executor.Execute(r.Context(), UserID(r.Context()), connectionID, in.Query)
	writeJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) ExecuteLLM(w http.ResponseWriter, r *http.Request) {
	connectionID := r.URL.Query().Get("connection_id")
	if connectionID == "" {
		writeError(w, http.StatusBadRequest, "connection_id query parameter is required")
		return
	}

	var in struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Request body must contain a prompt")
		return
	}

	result := h.llmSvc.Process(r.Context(), UserID(r.Context()), connectionID, in.Prompt)
	writeJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) SampleData(w http.ResponseWriter, r *http.Request) {
	connectionID := r.URL.Query().Get("connection_id")
	if connectionID == "" {
		writeError(w, http.StatusBadRequest, "connection_id query parameter is required")
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	result := h.executor.SampleData(r.Context(), UserID(r.Context()), connectionID, chi.URLParam(r, "tableName"), limit)
	writeJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.logRepo.ListForUser(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []core.QueryLogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *QueryHandler) DeleteAllLogs(w http.ResponseWriter, r *http.Request) {
	count, err := h.logRepo.DeleteAllForUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Successfully deleted %d query history records", count),
		"deleted_count": count,
	})
}

func (h *QueryHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.logRepo.DeleteOne(r.Context(), chi.URLParam(r, "logID"), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Query log not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Query log deleted successfully"})
}
