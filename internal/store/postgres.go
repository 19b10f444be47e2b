package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

const tenantColumns = `id, name, agent_name, agent_email, plan, active, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.AgentName, &t.AgentEmail, &t.Plan, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EnsureTenant creates the tenant on first reference and returns it.
func (s *PostgresStore) EnsureTenant(ctx context.Context, id string) (*models.Tenant, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, plan, active) VALUES ($1, $1, $2, TRUE)
		 ON CONFLICT (id) DO NOTHING`, id, models.PlanFree)
	if err != nil {
		return nil, fmt.Errorf("ensure tenant: %w", err)
	}
	return s.GetTenant(ctx, id)
}

func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpsertTenant(ctx context.Context, t *models.Tenant) (*models.Tenant, error) {
	out, err := scanTenant(s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, agent_name, agent_email, plan, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   agent_name = EXCLUDED.agent_name,
		   agent_email = EXCLUDED.agent_email,
		   plan = EXCLUDED.plan,
		   active = EXCLUDED.active,
		   updated_at = NOW()
		 RETURNING `+tenantColumns,
		t.ID, t.Name, t.AgentName, t.AgentEmail, t.Plan, t.Active))
	if err != nil {
		return nil, fmt.Errorf("upsert tenant: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *PostgresStore) DeactivateTenant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Network ---

func (s *PostgresStore) GetHierarchy(ctx context.Context, tenantID string) (*models.OfficeHierarchy, error) {
	var h models.OfficeHierarchy
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, office_tenant, national_tenant, updated_at
		 FROM office_hierarchy WHERE tenant_id = $1`, tenantID,
	).Scan(&h.TenantID, &h.OfficeTenant, &h.NationalTenant, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hierarchy: %w", err)
	}
	return &h, nil
}

func (s *PostgresStore) PutHierarchy(ctx context.Context, h *models.OfficeHierarchy) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO office_hierarchy (tenant_id, office_tenant, national_tenant, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   office_tenant = EXCLUDED.office_tenant,
		   national_tenant = EXCLUDED.national_tenant,
		   updated_at = NOW()`,
		h.TenantID, h.OfficeTenant, h.NationalTenant)
	if err != nil {
		return fmt.Errorf("put hierarchy: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCoBrokerage(ctx context.Context, tenantID string) (*models.CoBrokerageConfig, error) {
	var c models.CoBrokerageConfig
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, enabled, shared_tenants, updated_at
		 FROM cobrokerage_config WHERE tenant_id = $1`, tenantID,
	).Scan(&c.TenantID, &c.Enabled, &c.SharedTenants, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cobrokerage config: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) PutCoBrokerage(ctx context.Context, c *models.CoBrokerageConfig) error {
	shared := c.SharedTenants
	if shared == nil {
		shared = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cobrokerage_config (tenant_id, enabled, shared_tenants, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   enabled = EXCLUDED.enabled,
		   shared_tenants = EXCLUDED.shared_tenants,
		   updated_at = NOW()`,
		c.TenantID, c.Enabled, shared)
	if err != nil {
		return fmt.Errorf("put cobrokerage config: %w", err)
	}
	return nil
}

// --- Token Usage ---

func (s *PostgresStore) GetTokenUsage(ctx context.Context, tenantID string) (*models.TokenUsage, error) {
	var u models.TokenUsage
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, input_tokens, output_tokens, request_count, plan, window_start
		 FROM token_usage WHERE tenant_id = $1`, tenantID,
	).Scan(&u.TenantID, &u.InputTokens, &u.OutputTokens, &u.RequestCount, &u.Plan, &u.WindowStart)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token usage: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) SaveTokenUsage(ctx context.Context, u *models.TokenUsage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_usage (tenant_id, input_tokens, output_tokens, request_count, plan, window_start, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   input_tokens = EXCLUDED.input_tokens,
		   output_tokens = EXCLUDED.output_tokens,
		   request_count = EXCLUDED.request_count,
		   plan = EXCLUDED.plan,
		   window_start = EXCLUDED.window_start,
		   updated_at = NOW()`,
		u.TenantID, u.InputTokens, u.OutputTokens, u.RequestCount, u.Plan, u.WindowStart)
	if err != nil {
		return fmt.Errorf("save token usage: %w", err)
	}
	return nil
}

// --- Audit Log ---

func (s *PostgresStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (collection, tenant_id, payload, created_at) VALUES ($1, $2, $3, $4)`,
		rec.Collection, rec.TenantID, string(payload), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, tenantID, collection string, limit int) ([]*models.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT collection, tenant_id, payload, created_at FROM audit_log
		 WHERE tenant_id = $1 AND collection = $2
		 ORDER BY created_at DESC, id DESC LIMIT $3`, tenantID, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		var (
			r   models.AuditRecord
			raw []byte
		)
		if err := rows.Scan(&r.Collection, &r.TenantID, &raw, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Payload = json.RawMessage(raw)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// --- Feedback ---

func (s *PostgresStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (id, tenant_id, rating, user_message, bot_response, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.TenantID, f.Rating, f.UserMessage, f.BotResponse, f.Comment, f.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentNegativeFeedback(ctx context.Context, tenantID string, limit int) ([]*models.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, rating, user_message, bot_response, comment, created_at
		 FROM feedback WHERE tenant_id = $1 AND rating = $2
		 ORDER BY created_at DESC LIMIT $3`, tenantID, models.RatingNegative, limit)
	if err != nil {
		return nil, fmt.Errorf("recent negative feedback: %w", err)
	}
	defer rows.Close()

	var out []*models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Rating, &f.UserMessage, &f.BotResponse, &f.Comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// FeedbackStats counts ratings over the tenant's most recent window entries.
func (s *PostgresStore) FeedbackStats(ctx context.Context, tenantID string, window int) (models.FeedbackStats, error) {
	var st models.FeedbackStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE rating = $3)
		 FROM (SELECT rating FROM feedback WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2) recent`,
		tenantID, window, models.RatingNegative,
	).Scan(&st.Total, &st.Negative)
	if err != nil {
		return models.FeedbackStats{}, fmt.Errorf("feedback stats: %w", err)
	}
	return st, nil
}

// --- Visitors ---

func (s *PostgresStore) CreateVisitor(ctx context.Context, v *models.Visitor) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO visitors (id, tenant_id, name, email, phone, property_id, preferred_date, preferred_time, message, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.TenantID, v.Name, v.Email, v.Phone, v.PropertyID, v.PreferredDate, v.PreferredTime,
		v.Message, v.Source, v.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create visitor: %w", err)
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
