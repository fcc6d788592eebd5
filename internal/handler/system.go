package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/service"
)

// SystemHandler manages conduit's own configuration: services, declared
// endpoints, and API tokens.
type SystemHandler struct {
	store    *config.Store
	authSvc  *service.AuthService
	registry *dialect.Registry
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store *config.Store, authSvc *service.AuthService, registry *dialect.Registry) *SystemHandler {
	return &SystemHandler{
		store:    store,
		authSvc:  authSvc,
		registry: registry,
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// sessionResponse is the payload for a successful token exchange.
type sessionResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
}

// CreateSession exchanges a valid API token for a short-lived JWT.
// POST /api/v1/system/session
func (h *SystemHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}

	principal, err := h.authSvc.ValidateAPIToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ttl := time.Hour
	jwtToken, err := h.authSvc.IssueJWT(r.Context(), principal.Name, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     jwtToken,
		TokenType: "bearer",
		ExpiresIn: int(ttl.Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Service management
// ---------------------------------------------------------------------------

// ListServices returns all configured database services.
// GET /api/v1/system/service
func (h *SystemHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListServices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list services: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(services))
	for i := range services {
		resources = append(resources, serviceToMap(&services[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"services": resources,
		"count":    len(resources),
	})
}

// CreateService registers a new database service and connects it.
// POST /api/v1/system/service
func (h *SystemHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var svc model.ServiceConfig
	if err := readJSON(r, &svc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if svc.Name == "" {
		writeError(w, http.StatusBadRequest, "Service name is required")
		return
	}
	if svc.Driver == "" {
		writeError(w, http.StatusBadRequest, "Driver is required")
		return
	}
	if svc.DSN == "" {
		writeError(w, http.StatusBadRequest, "DSN is required")
		return
	}
	if _, err := dialect.Lookup(svc.Driver); err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported driver: "+svc.Driver)
		return
	}

	if existing, err := h.store.GetService(r.Context(), svc.Name); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "Service already exists: "+svc.Name)
		return
	}

	svc.IsActive = true
	svc.DSN = dialect.SanitizeDSN(svc.Driver, svc.DSN)

	if err := h.store.CreateService(r.Context(), &svc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create service: "+err.Error())
		return
	}

	// Connect immediately so declared endpoints can use it without a restart.
	pool := dialect.PoolConfig{
		MaxOpenConns:    svc.Pool.MaxOpenConns,
		MaxIdleConns:    svc.Pool.MaxIdleConns,
		ConnMaxLifetime: svc.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: svc.Pool.ConnMaxIdleTime,
	}
	if err := h.registry.Connect(svc.Name, svc.Driver, svc.DSN, pool); err != nil {
		// Persisted but unreachable; report it without failing the create.
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"service":            serviceToMap(&svc),
			"connection_warning": "Service saved but connection failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, serviceToMap(&svc))
}

// GetService returns a single service by name.
// GET /api/v1/system/service/{serviceName}
func (h *SystemHandler) GetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "serviceName")

	svc, err := h.store.GetService(r.Context(), name)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get service: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, serviceToMap(svc))
}

// DeleteService removes a service and disconnects it.
// DELETE /api/v1/system/service/{serviceName}
func (h *SystemHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "serviceName")

	if err := h.store.DeleteService(r.Context(), name); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete service: "+err.Error())
		return
	}

	_ = h.registry.Disconnect(name)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Service '" + name + "' deleted",
	})
}

// TestConnection pings a connected service.
// GET /api/v1/system/service/{serviceName}/test
func (h *SystemHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "serviceName")

	if err := h.registry.Ping(r.Context(), name); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Ping failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connection successful",
	})
}

// ---------------------------------------------------------------------------
// Endpoint management
// ---------------------------------------------------------------------------

// ListQueryEndpoints returns all declared query endpoints.
// GET /api/v1/system/query-endpoint
func (h *SystemHandler) ListQueryEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, err := h.store.ListQueryEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list query endpoints: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": eps,
		"count":     len(eps),
	})
}

// SaveQueryEndpoint creates or replaces a query endpoint declaration. The
// template and conditions are validated before anything is persisted.
// PUT /api/v1/system/query-endpoint
func (h *SystemHandler) SaveQueryEndpoint(w http.ResponseWriter, r *http.Request) {
	var ep model.QueryEndpoint
	if err := readJSON(r, &ep); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if ep.Name == "" || ep.Service == "" {
		writeError(w, http.StatusBadRequest, "Endpoint name and service are required")
		return
	}

	if err := validateQueryEndpoint(&ep); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endpoint definition: "+err.Error())
		return
	}

	if err := h.store.SaveQueryEndpoint(r.Context(), &ep); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save query endpoint: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// DeleteQueryEndpoint removes a query endpoint declaration.
// DELETE /api/v1/system/query-endpoint/{endpointName}
func (h *SystemHandler) DeleteQueryEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "endpointName")
	if err := h.store.DeleteQueryEndpoint(r.Context(), name); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Query endpoint not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete query endpoint: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Query endpoint '" + name + "' deleted",
	})
}

// ListBatchEndpoints returns all declared batch endpoints.
// GET /api/v1/system/batch-endpoint
func (h *SystemHandler) ListBatchEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, err := h.store.ListBatchEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batch endpoints: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": eps,
		"count":     len(eps),
	})
}

// SaveBatchEndpoint creates or replaces a batch endpoint declaration. Table
// and column identifiers plus the key mapping rule are validated up front.
// PUT /api/v1/system/batch-endpoint
func (h *SystemHandler) SaveBatchEndpoint(w http.ResponseWriter, r *http.Request) {
	var ep model.BatchEndpoint
	if err := readJSON(r, &ep); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if ep.Name == "" || ep.Service == "" {
		writeError(w, http.StatusBadRequest, "Endpoint name and service are required")
		return
	}

	if err := validateBatchEndpoint(&ep); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endpoint definition: "+err.Error())
		return
	}

	if err := h.store.SaveBatchEndpoint(r.Context(), &ep); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save batch endpoint: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// DeleteBatchEndpoint removes a batch endpoint declaration.
// DELETE /api/v1/system/batch-endpoint/{endpointName}
func (h *SystemHandler) DeleteBatchEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "endpointName")
	if err := h.store.DeleteBatchEndpoint(r.Context(), name); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Batch endpoint not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete batch endpoint: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Batch endpoint '" + name + "' deleted",
	})
}

// ---------------------------------------------------------------------------
// API token management
// ---------------------------------------------------------------------------

// ListAPITokens returns all tokens without exposing hashes.
// GET /api/v1/system/token
func (h *SystemHandler) ListAPITokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.ListAPITokens(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tokens: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

// createTokenRequest is the expected payload for CreateAPIToken.
type createTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createTokenResponse includes the plaintext token (shown once only).
type createTokenResponse struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"` // Plaintext, shown ONCE.
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateAPIToken generates a new API token, stores its hash, and returns the
// plaintext exactly once.
// POST /api/v1/system/token
func (h *SystemHandler) CreateAPIToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Token name is required")
		return
	}

	raw, err := config.GenerateToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token: "+err.Error())
		return
	}

	id, err := h.store.CreateAPIToken(r.Context(), req.Name, config.HashToken(raw), req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createTokenResponse{
		ID:        id,
		Token:     raw,
		Name:      req.Name,
		ExpiresAt: req.ExpiresAt,
	})
}

// RevokeAPIToken deactivates a token by ID.
// DELETE /api/v1/system/token/{tokenId}
func (h *SystemHandler) RevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "tokenId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid token ID: "+idStr)
		return
	}

	if err := h.store.RevokeAPIToken(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Token not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token revoked",
	})
}

// ---------------------------------------------------------------------------
// Serialization helpers (never expose the DSN)
// ---------------------------------------------------------------------------

func serviceToMap(svc *model.ServiceConfig) map[string]interface{} {
	return map[string]interface{}{
		"id":         svc.ID,
		"name":       svc.Name,
		"label":      svc.Label,
		"driver":     svc.Driver,
		"is_active":  svc.IsActive,
		"created_at": svc.CreatedAt,
		"updated_at": svc.UpdatedAt,
	}
}
