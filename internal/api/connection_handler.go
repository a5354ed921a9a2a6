package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantql/internal/core"
	"tenantql/internal/service"
)

type ConnectionHandler struct {
	registry *service.ConnectionRegistry
	broker   *service.ConnectionBroker
	executor *service.TenantQueryExecutor
}

func NewConnectionHandler(registry *service.ConnectionRegistry, broker *service.ConnectionBroker, executor *service.TenantQueryExecutor) *ConnectionHandler {
	return &ConnectionHandler{registry: registry, broker: broker, executor: executor}
}

func (h *ConnectionHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{connectionID}", h.Get)
	r.Put("/{connectionID}", h.Update)
	r.Delete("/{connectionID}", h.Delete)
	r.Post("/{connectionID}/test", h.Test)
	r.Get("/{connectionID}/schema", h.Schema)
	return r
}

// writeGateError maps gate failures onto the API contract: missing records
// are 404, foreign or inactive records are 403.
func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Database connection not found")
	case errors.Is(err, core.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied to this database connection")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.registry.ListForUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if connections == nil {
		connections = []core.Connection{}
	}
	writeJSON(w, http.StatusOK, connections)
}

func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conn, err := h.registry.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	connectionID := chi.URLParam(r, "connectionID")

	if err := h.registry.Authorize(r.Context(), userID, connectionID); err != nil {
		writeGateError(w, err)
		return
	}

	conn, err := h.registry.Get(r.Context(), connectionID)
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	connectionID := chi.URLParam(r, "connectionID")

	if err := h.registry.Authorize(r.Context(), userID, connectionID); err != nil {
		writeGateError(w, err)
		return
	}

	var in service.UpdateConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conn, err := h.registry.Update(r.Context(), connectionID, in)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeGateError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	connectionID := chi.URLParam(r, "connectionID")

	if err := h.registry.Authorize(r.Context(), userID, connectionID); err != nil {
		writeGateError(w, err)
		return
	}

	existed, err := h.registry.Deactivate(r.Context(), connectionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "Database connection not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Database connection deleted successfully"})
}

func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	connectionID := chi.URLParam(r, "connectionID")

	if err := h.registry.Authorize(r.Context(), userID, connectionID); err != nil {
		writeGateError(w, err)
		return
	}

	result := h.broker.TestConnection(r.Context(), userID, connectionID)
	writeJSON(w, http.StatusOK, result)
}

func (h *ConnectionHandler) Schema(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	connectionID := chi.URLParam(r, "connectionID")

	schema, err := h.executor.DetectSchema(r.Context(), userID, connectionID)
	if err != nil {
		var sde *core.SchemaDetectionError
		switch {
		case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrAccessDenied):
			writeGateError(w, err)
		case errors.As(err, &sde):
			writeError(w, http.StatusBadGateway, sde.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connection_id": connectionID,
		"schema_data":   schema,
		"success":       true,
	})
}
