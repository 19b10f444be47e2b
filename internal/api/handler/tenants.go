package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/internal/usage"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// TenantStore is the slice of the data store the tenant admin API needs.
type TenantStore interface {
	EnsureTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	UpsertTenant(ctx context.Context, t *models.Tenant) (*models.Tenant, error)
	DeactivateTenant(ctx context.Context, id string) error
	PutHierarchy(ctx context.Context, h *models.OfficeHierarchy) error
	PutCoBrokerage(ctx context.Context, c *models.CoBrokerageConfig) error
	ListAudit(ctx context.Context, tenantID, collection string, limit int) ([]*models.AuditRecord, error)
}

// UsageChecker reports a tenant's quota position.
type UsageChecker interface {
	Check(ctx context.Context, tenantID string) (usage.Status, error)
}

var auditCollections = map[string]bool{
	models.CollectionSecurityIncidents:  true,
	models.CollectionValidationWarnings: true,
	models.CollectionRedactions:         true,
}

func pathTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := models.TenantDomain(chi.URLParam(r, "tenantID"))
	if id == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_TENANT", "Invalid tenant id", nil)
		return "", false
	}
	return id, true
}

// NewPutTenantHandler returns an http.HandlerFunc for PUT /api/v1/admin/tenants/{tenantID}.
func NewPutTenantHandler(s TenantStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}

		var req struct {
			Name       string `json:"name"`
			AgentName  string `json:"agent_name"`
			AgentEmail string `json:"agent_email"`
			Plan       string `json:"plan"`
			Active     *bool  `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		plan := models.Plan(strings.ToLower(strings.TrimSpace(req.Plan)))
		if plan == "" {
			plan = models.PlanFree
		}
		if !plan.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "plan must be one of free, pro, enterprise", nil)
			return
		}
		email := strings.TrimSpace(req.AgentEmail)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "agent_email is not a valid address", nil)
				return
			}
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}

		t, err := s.UpsertTenant(r.Context(), &models.Tenant{
			ID:         id,
			Name:       strings.TrimSpace(req.Name),
			AgentName:  strings.TrimSpace(req.AgentName),
			AgentEmail: email,
			Plan:       plan,
			Active:     active,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save tenant", nil)
			return
		}
		slog.Info("tenant saved", "tenant", t.ID, "plan", string(t.Plan), "active", t.Active, "operator", mw.Operator(r))
		response.JSON(w, t)
	}
}

// NewDeleteTenantHandler returns an http.HandlerFunc for DELETE
// /api/v1/admin/tenants/{tenantID}. Tenants are deactivated, never removed.
func NewDeleteTenantHandler(s TenantStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}
		if err := s.DeactivateTenant(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deactivate tenant", nil)
			return
		}
		slog.Info("tenant deactivated", "tenant", id, "operator", mw.Operator(r))
		response.NoContent(w)
	}
}

// NewPutHierarchyHandler returns an http.HandlerFunc for PUT
// /api/v1/admin/tenants/{tenantID}/hierarchy.
func NewPutHierarchyHandler(s TenantStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}

		var req struct {
			OfficeTenant   string `json:"office_tenant"`
			NationalTenant string `json:"national_tenant"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		h := &models.OfficeHierarchy{
			TenantID:       id,
			OfficeTenant:   models.TenantDomain(req.OfficeTenant),
			NationalTenant: models.TenantDomain(req.NationalTenant),
			UpdatedAt:      time.Now().UTC(),
		}
		if h.OfficeTenant == id || h.NationalTenant == id {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "a tenant cannot be its own office or national catalog", nil)
			return
		}

		for _, t := range []string{id, h.OfficeTenant, h.NationalTenant} {
			if t == "" {
				continue
			}
			if _, err := s.EnsureTenant(r.Context(), t); err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save hierarchy", nil)
				return
			}
		}
		if err := s.PutHierarchy(r.Context(), h); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save hierarchy", nil)
			return
		}
		slog.Info("office hierarchy saved", "tenant", id, "office", h.OfficeTenant, "national", h.NationalTenant, "operator", mw.Operator(r))
		response.JSON(w, h)
	}
}

// NewPutCoBrokerageHandler returns an http.HandlerFunc for PUT
// /api/v1/admin/tenants/{tenantID}/cobrokerage.
func NewPutCoBrokerageHandler(s TenantStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}

		var req struct {
			Enabled       bool     `json:"enabled"`
			SharedTenants []string `json:"shared_tenants"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		c := &models.CoBrokerageConfig{
			TenantID:      id,
			Enabled:       req.Enabled,
			SharedTenants: []string{},
			UpdatedAt:     time.Now().UTC(),
		}
		for _, t := range req.SharedTenants {
			if d := models.TenantDomain(t); d != "" && d != id {
				c.SharedTenants = append(c.SharedTenants, d)
			}
		}

		if _, err := s.EnsureTenant(r.Context(), id); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save co-brokerage config", nil)
			return
		}
		if err := s.PutCoBrokerage(r.Context(), c); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save co-brokerage config", nil)
			return
		}
		slog.Info("co-brokerage saved", "tenant", id, "enabled", c.Enabled, "shared", len(c.SharedTenants), "operator", mw.Operator(r))
		response.JSON(w, c)
	}
}

// NewGetUsageHandler returns an http.HandlerFunc for GET
// /api/v1/admin/tenants/{tenantID}/usage.
func NewGetUsageHandler(s TenantStore, u UsageChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}
		if _, err := s.GetTenant(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tenant", nil)
			return
		}

		st, err := u.Check(r.Context(), id)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load usage", nil)
			return
		}
		response.JSON(w, map[string]any{
			"tenant_id":    id,
			"plan":         st.Plan,
			"used":         st.Used,
			"limit":        st.Limit,
			"percentage":   st.Percentage,
			"warning":      st.Warning,
			"exceeded":     st.Exceeded,
			"window_start": st.WindowStart,
		})
	}
}

// NewListAuditHandler returns an http.HandlerFunc for GET
// /api/v1/admin/tenants/{tenantID}/audit/{collection}.
func NewListAuditHandler(s TenantStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}
		collection := chi.URLParam(r, "collection")
		if !auditCollections[collection] {
			response.Error(w, http.StatusBadRequest, "INVALID_COLLECTION", "Unknown audit collection", nil)
			return
		}

		limit := defaultAuditLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxAuditLimit)
		}

		recs, err := s.ListAudit(r.Context(), id, collection, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit records", nil)
			return
		}
		response.Collection(w, recs, response.PaginationMeta{
			Page:    1,
			Limit:   limit,
			Total:   len(recs),
			HasNext: len(recs) == limit,
		})
	}
}
