package store

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for development and single-node demos.
// Nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	tenants     map[string]models.Tenant
	hierarchy   map[string]models.OfficeHierarchy
	cobrokerage map[string]models.CoBrokerageConfig
	usage       map[string]models.TokenUsage
	audit       []models.AuditRecord
	feedback    []models.Feedback
	visitors    map[uuid.UUID]models.Visitor
	keys        map[uuid.UUID]models.APIKey
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		tenants:     make(map[string]models.Tenant),
		hierarchy:   make(map[string]models.OfficeHierarchy),
		cobrokerage: make(map[string]models.CoBrokerageConfig),
		usage:       make(map[string]models.TokenUsage),
		visitors:    make(map[uuid.UUID]models.Visitor),
		keys:        make(map[uuid.UUID]models.APIKey),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// --- Tenants ---

func (s *MemoryStore) EnsureTenant(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		now := s.now()
		t = models.Tenant{ID: id, Name: id, Plan: models.PlanFree, Active: true, CreatedAt: now, UpdatedAt: now}
		s.tenants[id] = t
	}
	return &t, nil
}

func (s *MemoryStore) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) UpsertTenant(_ context.Context, t *models.Tenant) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := *t
	out.UpdatedAt = now
	if prev, ok := s.tenants[t.ID]; ok {
		out.CreatedAt = prev.CreatedAt
	} else {
		out.CreatedAt = now
	}
	s.tenants[t.ID] = out
	return &out, nil
}

func (s *MemoryStore) ListActiveTenants(context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Tenant
	for _, t := range s.tenants {
		if t.Active {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeactivateTenant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = false
	t.UpdatedAt = s.now()
	s.tenants[id] = t
	return nil
}

// --- Network ---

func (s *MemoryStore) GetHierarchy(_ context.Context, tenantID string) (*models.OfficeHierarchy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hierarchy[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (s *MemoryStore) PutHierarchy(_ context.Context, h *models.OfficeHierarchy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *h
	out.UpdatedAt = s.now()
	s.hierarchy[h.TenantID] = out
	return nil
}

func (s *MemoryStore) GetCoBrokerage(_ context.Context, tenantID string) (*models.CoBrokerageConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cobrokerage[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	c.SharedTenants = slices.Clone(c.SharedTenants)
	return &c, nil
}

func (s *MemoryStore) PutCoBrokerage(_ context.Context, c *models.CoBrokerageConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *c
	out.SharedTenants = slices.Clone(c.SharedTenants)
	out.UpdatedAt = s.now()
	s.cobrokerage[c.TenantID] = out
	return nil
}

// --- Token Usage ---

func (s *MemoryStore) GetTokenUsage(_ context.Context, tenantID string) (*models.TokenUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usage[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) SaveTokenUsage(_ context.Context, u *models.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[u.TenantID] = *u
	return nil
}

// --- Audit Log ---

func (s *MemoryStore) AppendAudit(_ context.Context, rec *models.AuditRecord) error {
	// Payloads are kept as JSON, matching the jsonb column.
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	out := *rec
	out.Payload = json.RawMessage(payload)
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, out)
	return nil
}

func (s *MemoryStore) ListAudit(_ context.Context, tenantID, collection string, limit int) ([]*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditRecord
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.audit[i]
		if r.TenantID == tenantID && r.Collection == collection {
			out = append(out, &r)
		}
	}
	return out, nil
}

// --- Feedback ---

func (s *MemoryStore) CreateFeedback(_ context.Context, f *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.feedback {
		if existing.ID == f.ID {
			return ErrDuplicateKey
		}
	}
	s.feedback = append(s.feedback, *f)
	return nil
}

// recentFeedback returns the tenant's ratings newest first. Callers hold the lock.
func (s *MemoryStore) recentFeedback(tenantID string) []models.Feedback {
	var out []models.Feedback
	for _, f := range s.feedback {
		if f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) RecentNegativeFeedback(_ context.Context, tenantID string, limit int) ([]*models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Feedback
	for _, f := range s.recentFeedback(tenantID) {
		if len(out) == limit {
			break
		}
		if f.Rating == models.RatingNegative {
			f := f
			out = append(out, &f)
		}
	}
	return out, nil
}

func (s *MemoryStore) FeedbackStats(_ context.Context, tenantID string, window int) (models.FeedbackStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st models.FeedbackStats
	for _, f := range s.recentFeedback(tenantID) {
		if st.Total == window {
			break
		}
		st.Total++
		if f.Rating == models.RatingNegative {
			st.Negative++
		}
	}
	return st, nil
}

// --- Visitors ---

func (s *MemoryStore) CreateVisitor(_ context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visitors[v.ID]; ok {
		return ErrDuplicateKey
	}
	s.visitors[v.ID] = *v
	return nil
}

// Visitors returns the tenant's captured leads, oldest first.
func (s *MemoryStore) Visitors(tenantID string) []models.Visitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Visitor
	for _, v := range s.visitors {
		if v.TenantID == tenantID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- API Keys ---

func (s *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			k := k
			out = append(out, &k)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil
	}
	now := s.now()
	k.LastUsedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}

func (s *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == key.ID || k.KeyHash == key.KeyHash {
			return ErrDuplicateKey
		}
		if k.DeletedAt == nil && k.TenantID == key.TenantID && k.Name == key.Name {
			return ErrDuplicateKey
		}
	}
	out := *key
	out.Scopes = slices.Clone(key.Scopes)
	s.keys[key.ID] = out
	return nil
}

func (s *MemoryStore) ListAPIKeys(_ context.Context, tenantID string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.TenantID == tenantID && k.DeletedAt == nil {
			k := k
			out = append(out, &k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.TenantID != tenantID || k.DeletedAt != nil {
		return ErrNotFound
	}
	now := s.now()
	k.DeletedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}
