package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/record"
	"github.com/conduitdb/conduit/internal/upsert"
)

// BatchHandler executes declared batch upsert endpoints.
type BatchHandler struct {
	registry *dialect.Registry
	store    *config.Store
	logger   *slog.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(registry *dialect.Registry, store *config.Store, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Execute runs one batch upsert endpoint against its service.
// POST /api/v1/batch/{endpointName}
func (h *BatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "endpointName")

	ep, err := h.store.GetBatchEndpoint(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Batch endpoint not found: "+name)
		return
	}

	conn, err := h.registry.Get(ep.Service)
	if err != nil {
		writeError(w, http.StatusNotFound, "Service not found: "+ep.Service)
		return
	}

	records, err := parseBatchBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	engine, err := upsert.New(upsert.Config{
		Table:        ep.Table,
		Mappings:     ep.Mappings,
		AllowUpdates: ep.AllowUpdates,
		MaxBatchSize: ep.MaxBatchSize,
		Logger:       h.logger,
	})
	if err != nil {
		h.logger.Error("batch endpoint misconfigured", "endpoint", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Endpoint configuration is invalid: "+name)
		return
	}

	result, err := engine.Execute(r.Context(), conn, records)
	if err != nil {
		// Whole-call rejection: empty batch or over the ceiling. No records
		// were touched.
		writeJSON(w, http.StatusBadRequest, model.BatchResponse{
			Result:       model.ResultKO,
			ErrorDetails: []string{},
			Message:      err.Error(),
		})
		return
	}

	msg := fmt.Sprintf("Inserted %d, updated %d, failed %d of %d records",
		result.Inserted, result.Updated, result.Errors, len(records))
	if result.Degraded {
		msg += " (existence pre-check unavailable, all records treated as new)"
	}

	details := result.ErrorDetails
	if details == nil {
		details = []string{}
	}
	writeJSON(w, http.StatusOK, model.BatchResponse{
		Result:       result.Status,
		Inserted:     result.Inserted,
		Updated:      result.Updated,
		Errors:       result.Errors,
		ErrorDetails: details,
		Message:      msg,
	})
}

// parseBatchBody accepts either {"records": [...]} or a lone record object,
// which is treated as a one-element batch.
func parseBatchBody(r *http.Request) ([]record.Record, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Records []record.Record `json:"records"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Records != nil {
		return envelope.Records, nil
	}

	var single record.Record
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("expected a records array or a single record object")
	}
	return []record.Record{single}, nil
}
