package catalog

import (
	"context"
	"log/slog"
	"strings"
)

// ChangeChannel is the pub/sub channel catalog updates are announced on.
// The message payload is the tenant id.
const ChangeChannel = "catalog:changed"

// Invalidator drops a tenant's cached catalog.
type Invalidator interface {
	Invalidate(tenantID string)
}

// Watch invalidates each tenant announced on changes until ctx is done or the
// channel closes.
func Watch(ctx context.Context, changes <-chan string, inv Invalidator) {
	for {
		select {
		case <-ctx.Done():
			return
		case tenantID, ok := <-changes:
			if !ok {
				return
			}
			tenantID = strings.TrimSpace(tenantID)
			if tenantID == "" {
				continue
			}
			slog.Debug("catalog change received", "tenant", tenantID)
			inv.Invalidate(tenantID)
		}
	}
}
