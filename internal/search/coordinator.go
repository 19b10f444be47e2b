package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Catalog levels. Level 1 is the tenant's own catalog.
const (
	LevelPersonal = 1
	LevelOffice   = 2
	LevelNational = 3
)

const (
	noteCoBrokerageDisabled = "Co-brokerage search is not enabled for this agent, so only the agent's own listings are available."
	noteNoCoBrokerageMatch  = "No matching listings were found in the office or national network either."
)

// CatalogResolver returns a tenant's catalog snapshot.
type CatalogResolver interface {
	Resolve(ctx context.Context, tenantID string) ([]models.Property, error)
}

// NetworkStore is the slice of the data store the coordinator reads.
type NetworkStore interface {
	GetCoBrokerage(ctx context.Context, tenantID string) (*models.CoBrokerageConfig, error)
	GetHierarchy(ctx context.Context, tenantID string) (*models.OfficeHierarchy, error)
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
}

// CascadeResult is the outcome of a co-brokerage search. Level is zero when
// nothing was found.
type CascadeResult struct {
	Properties []models.Property
	Level      int
	Note       string
}

type tier struct {
	level   int
	label   string
	tenants []string
}

// Coordinator searches office and national catalogs in priority order.
type Coordinator struct {
	catalogs CatalogResolver
	network  NetworkStore
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(catalogs CatalogResolver, network NetworkStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{catalogs: catalogs, network: network, logger: logger}
}

// CascadeSearch walks the tenant's co-brokerage levels and returns the first
// level with matches. Later levels are never loaded once one matches.
func (c *Coordinator) CascadeSearch(ctx context.Context, tenantID string, crit Criteria) (CascadeResult, error) {
	tenantID = models.TenantDomain(tenantID)
	cfg, err := c.network.GetCoBrokerage(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !cfg.Enabled) {
		return CascadeResult{Note: noteCoBrokerageDisabled}, nil
	}
	if err != nil {
		return CascadeResult{}, fmt.Errorf("get co-brokerage config: %w", err)
	}

	tiers, err := c.tiers(ctx, tenantID, cfg)
	if err != nil {
		return CascadeResult{}, err
	}

	crit = crit.normalized()
	for _, t := range tiers {
		var found []models.Property
		for _, source := range t.tenants {
			props, err := c.catalogs.Resolve(ctx, source)
			if err != nil {
				c.logger.Warn("co-brokerage catalog unavailable",
					"tenant", tenantID,
					"source", source,
					"error", err,
				)
				continue
			}
			for _, p := range filter(props, crit, matchAll) {
				found = append(found, p.CoBrokered(source, t.level, t.label))
			}
		}
		if len(found) == 0 {
			continue
		}

		found = capped(found, OfficeCap)
		metrics.SearchResultsCount.WithLabelValues(levelName(t.level)).Observe(float64(len(found)))
		c.logger.Info("co-brokerage match",
			"tenant", tenantID,
			"level", t.level,
			"results", len(found),
		)
		return CascadeResult{Properties: found, Level: t.level}, nil
	}

	return CascadeResult{Note: noteNoCoBrokerageMatch}, nil
}

// tiers builds the ordered search levels. Without a hierarchy entry every other
// active tenant the config shares with becomes one unordered level-2 peer set.
func (c *Coordinator) tiers(ctx context.Context, tenantID string, cfg *models.CoBrokerageConfig) ([]tier, error) {
	h, err := c.network.GetHierarchy(ctx, tenantID)
	switch {
	case err == nil:
		var out []tier
		if h.OfficeTenant != "" {
			out = append(out, tier{level: LevelOffice, label: "Office", tenants: []string{h.OfficeTenant}})
		}
		if h.NationalTenant != "" {
			out = append(out, tier{level: LevelNational, label: "National", tenants: []string{h.NationalTenant}})
		}
		return out, nil
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("get office hierarchy: %w", err)
	}

	tenants, err := c.network.ListActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	var peers []string
	for _, t := range tenants {
		if t.Domain() == tenantID || !cfg.Shares(t.ID) {
			continue
		}
		peers = append(peers, t.ID)
	}
	sort.Strings(peers)
	if len(peers) == 0 {
		return nil, nil
	}
	return []tier{{level: LevelOffice, label: "Partner", tenants: peers}}, nil
}

func levelName(level int) string {
	switch level {
	case LevelNational:
		return "national"
	case LevelOffice:
		return "office"
	}
	return "personal"
}
