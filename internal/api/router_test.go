package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/propchat/internal/api"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub key store with no keys (all auth fails) ---

type stubKeys struct{}

func (s *stubKeys) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubKeys) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

// --- stub counter ---

type stubCounter struct{}

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:           mw.NewAuth(&stubKeys{}),
		AdminRateLimit: mw.NewRateLimit(&stubCounter{}, 60, nil),
		ChatRateLimit:  mw.NewRateLimit(&stubCounter{}, 30, mw.ByTenantIP),
		Tenancy:        config.TenancyConfig{Mode: "multi"},
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		ChatHandler: func(w http.ResponseWriter, r *http.Request) {
			tenant, _ := mw.GetTenantID(r)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(tenant))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "propchat_")
}

func TestRouter_ChatIsTenantScopedAndRateLimited(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/api/v1/chat", nil)
	req.Header.Set(mw.TenantHeader, "www.Agent-A.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "agent-a.com", w.Body.String())
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_ChatWithoutTenant(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/api/v1/chat", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_UnwiredEndpoint_NotImplemented(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/api/v1/feedback", nil)
	req.Header.Set(mw.TenantHeader, "agent-a.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_AdminEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"PUT", "/api/v1/admin/tenants/agent-a.com"},
		{"DELETE", "/api/v1/admin/tenants/agent-a.com"},
		{"PUT", "/api/v1/admin/tenants/agent-a.com/hierarchy"},
		{"PUT", "/api/v1/admin/tenants/agent-a.com/cobrokerage"},
		{"GET", "/api/v1/admin/tenants/agent-a.com/usage"},
		{"GET", "/api/v1/admin/tenants/agent-a.com/audit/security_incidents"},
		{"POST", "/api/v1/admin/catalog/agent-a.com/invalidate"},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
		{"DELETE", "/api/v1/admin/keys/" + uuid.NewString()},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
