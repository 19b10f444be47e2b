package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	EnsureTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	UpsertTenant(ctx context.Context, t *models.Tenant) (*models.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
	DeactivateTenant(ctx context.Context, id string) error

	GetHierarchy(ctx context.Context, tenantID string) (*models.OfficeHierarchy, error)
	PutHierarchy(ctx context.Context, h *models.OfficeHierarchy) error
	GetCoBrokerage(ctx context.Context, tenantID string) (*models.CoBrokerageConfig, error)
	PutCoBrokerage(ctx context.Context, c *models.CoBrokerageConfig) error

	GetTokenUsage(ctx context.Context, tenantID string) (*models.TokenUsage, error)
	SaveTokenUsage(ctx context.Context, u *models.TokenUsage) error

	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	ListAudit(ctx context.Context, tenantID, collection string, limit int) ([]*models.AuditRecord, error)

	CreateFeedback(ctx context.Context, f *models.Feedback) error
	RecentNegativeFeedback(ctx context.Context, tenantID string, limit int) ([]*models.Feedback, error)
	FeedbackStats(ctx context.Context, tenantID string, window int) (models.FeedbackStats, error)

	CreateVisitor(ctx context.Context, v *models.Visitor) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID string) error
}
