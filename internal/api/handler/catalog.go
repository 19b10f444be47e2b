package handler

import (
	"context"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/catalog"
)

// Publisher announces messages to every server instance.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// NewInvalidateCatalogHandler returns an http.HandlerFunc for POST
// /api/v1/admin/catalog/{tenantID}/invalidate. The change is broadcast so
// every instance drops its cached snapshot.
func NewInvalidateCatalogHandler(p Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathTenant(w, r)
		if !ok {
			return
		}
		if err := p.Publish(r.Context(), catalog.ChangeChannel, id); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "PUBLISH_FAILED", "Catalog change could not be announced", nil)
			return
		}
		slog.Info("catalog invalidation published", "tenant", id, "operator", mw.Operator(r))
		response.Accepted(w, map[string]string{"tenant_id": id})
	}
}
