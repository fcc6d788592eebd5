package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/record"
)

// QueryHandler executes declared conditional-query endpoints.
type QueryHandler struct {
	registry *dialect.Registry
	store    *config.Store
	logger   *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(registry *dialect.Registry, store *config.Store, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryHandler{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Execute runs one query endpoint against its service.
// POST /api/v1/query/{endpointName}
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "endpointName")

	ep, err := h.store.GetQueryEndpoint(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Query endpoint not found: "+name)
		return
	}

	conn, err := h.registry.Get(ep.Service)
	if err != nil {
		writeError(w, http.StatusNotFound, "Service not found: "+ep.Service)
		return
	}

	var rec record.Record
	if err := readJSON(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	builder, err := query.NewConditionalBuilder(ep.Template, ep.DefaultWhere, ep.Conditions, ep.Mappings)
	if err != nil {
		h.logger.Error("query endpoint misconfigured", "endpoint", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Endpoint configuration is invalid: "+name)
		return
	}

	built := builder.Build(rec)
	provided := strings.Join(built.Provided, ", ")

	records, err := h.run(r, conn, built)
	if err != nil {
		// The raw driver error may leak schema details; log it, return a
		// generic reason in the standard envelope.
		h.logger.Error("query execution failed",
			"endpoint", name, "service", ep.Service, "error", err)
		writeJSON(w, http.StatusInternalServerError, model.ReadResponse{
			Result:             model.ResultKO,
			ProvidedParameters: provided,
			Records:            []map[string]interface{}{},
			Reason:             "query execution failed for endpoint " + name,
		})
		return
	}

	writeJSON(w, http.StatusOK, model.ReadResponse{
		Result:             model.ResultOK,
		ProvidedParameters: provided,
		Records:            records,
	})
}

func (h *QueryHandler) run(r *http.Request, conn *dialect.Conn, built *query.BuildResult) ([]map[string]interface{}, error) {
	q, args, err := sqlx.Named(built.SQL, built.Params)
	if err != nil {
		return nil, err
	}
	q = sqlx.Rebind(conn.Dialect.BindType, q)

	rows, err := conn.DB.QueryxContext(r.Context(), q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []map[string]interface{}{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		records = append(records, cleanRow(row))
	}
	return records, rows.Err()
}
