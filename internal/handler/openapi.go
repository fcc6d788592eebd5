package handler

import (
	"net/http"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI document generated from the declared
// endpoints.
type OpenAPIHandler struct {
	store   *config.Store
	baseURL string
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(store *config.Store, baseURL string) *OpenAPIHandler {
	return &OpenAPIHandler{store: store, baseURL: baseURL}
}

// ServeSpec returns the OpenAPI spec covering every declared endpoint.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	queryEPs, err := h.store.ListQueryEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list query endpoints: "+err.Error())
		return
	}
	batchEPs, err := h.store.ListBatchEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batch endpoints: "+err.Error())
		return
	}

	doc := openapi.Generate(queryEPs, batchEPs, h.baseURL)
	data, err := openapi.MarshalJSON(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render spec: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
