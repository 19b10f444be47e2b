package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	AdminRateLimit *mw.RateLimit
	ChatRateLimit  *mw.RateLimit
	Tenancy        config.TenancyConfig

	HealthHandler   http.HandlerFunc
	ChatHandler     http.HandlerFunc
	FeedbackHandler http.HandlerFunc

	PutTenantHandler      http.HandlerFunc
	DeleteTenantHandler   http.HandlerFunc
	PutHierarchyHandler   http.HandlerFunc
	PutCoBrokerageHandler http.HandlerFunc
	GetUsageHandler       http.HandlerFunc
	ListAuditHandler      http.HandlerFunc
	InvalidateCatalog     http.HandlerFunc
	CreateKeyHandler      http.HandlerFunc
	ListKeysHandler       http.HandlerFunc
	RevokeKeyHandler      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Visitor-facing endpoints, scoped to the resolved tenant
	r.Group(func(r chi.Router) {
		r.Use(mw.ResolveTenant(deps.Tenancy))
		if deps.ChatRateLimit != nil {
			r.Use(deps.ChatRateLimit.Limit)
		}

		r.Post("/api/v1/chat", orNotImplemented(deps.ChatHandler))
		r.Post("/api/v1/feedback", orNotImplemented(deps.FeedbackHandler))
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		if deps.AdminRateLimit != nil {
			r.Use(deps.AdminRateLimit.Limit)
		}
		r.Use(deps.Auth.RequireScope("admin"))

		r.Route("/api/v1/admin/tenants/{tenantID}", func(r chi.Router) {
			r.Put("/", orNotImplemented(deps.PutTenantHandler))
			r.Delete("/", orNotImplemented(deps.DeleteTenantHandler))
			r.Put("/hierarchy", orNotImplemented(deps.PutHierarchyHandler))
			r.Put("/cobrokerage", orNotImplemented(deps.PutCoBrokerageHandler))
			r.Get("/usage", orNotImplemented(deps.GetUsageHandler))
			r.Get("/audit/{collection}", orNotImplemented(deps.ListAuditHandler))
		})
		r.Post("/api/v1/admin/catalog/{tenantID}/invalidate", orNotImplemented(deps.InvalidateCatalog))

		r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
