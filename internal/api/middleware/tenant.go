package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// TenantHeader names the tenant explicitly, ahead of any other source.
const TenantHeader = "X-Tenant-ID"

// MaxBodyBytes bounds public request bodies.
const MaxBodyBytes = 64 << 10

// ResolveTenant sets the tenant of a public request. Sources in order: the
// X-Tenant-ID header, a "tenant" field in the JSON body, the "tenant" query
// parameter, the Origin host, then the configured default. In single-tenant
// mode every request belongs to the default tenant.
func ResolveTenant(cfg config.TenancyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cfg.DefaultTenant
			if !cfg.Single() {
				if found := requestTenant(r); found != "" {
					id = found
				}
			}

			id = models.TenantDomain(id)
			if id == "" {
				response.Error(w, http.StatusBadRequest,
					"TENANT_REQUIRED", "Request does not identify a tenant", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetTenantID(r.Context(), id)))
		})
	}
}

func requestTenant(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(TenantHeader)); h != "" {
		return h
	}
	if t := bodyTenant(r); t != "" {
		return t
	}
	if q := strings.TrimSpace(r.URL.Query().Get("tenant")); q != "" {
		return q
	}
	if o := r.Header.Get("Origin"); o != "" {
		if u, err := url.Parse(o); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return ""
}

// bodyTenant peeks at a JSON body and restores it for the handler.
func bodyTenant(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet ||
		!strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var peek struct {
		Tenant string `json:"tenant"`
	}
	if json.Unmarshal(raw, &peek) != nil {
		return ""
	}
	return strings.TrimSpace(peek.Tenant)
}
