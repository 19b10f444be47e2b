// Package usage accounts tenant token consumption against monthly plan ceilings.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// WarningPercent is the usage level past which Check reports a warning.
const WarningPercent = 80.0

// Store persists usage records and exposes tenant plans.
type Store interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTokenUsage(ctx context.Context, tenantID string) (*models.TokenUsage, error)
	SaveTokenUsage(ctx context.Context, u *models.TokenUsage) error
}

// Status is a tenant's standing against its plan ceiling.
type Status struct {
	Exceeded    bool        `json:"exceeded"`
	Percentage  float64     `json:"percentage"`
	Warning     bool        `json:"warning"`
	Used        int64       `json:"used"`
	Limit       int64       `json:"limit"`
	Plan        models.Plan `json:"plan"`
	WindowStart time.Time   `json:"window_start"`
}

// Tracker checks and records token usage. With hard quotas enabled the
// read-modify-write of a tenant's record is serialized per tenant; otherwise
// concurrent turns may lose increments.
type Tracker struct {
	store  Store
	limits map[models.Plan]int64
	window time.Duration
	hard   bool
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker with plan ceilings from cfg.
func NewTracker(s Store, cfg config.UsageConfig, opts ...Option) *Tracker {
	t := &Tracker{
		store: s,
		limits: map[models.Plan]int64{
			models.PlanFree:       cfg.FreeLimit,
			models.PlanPro:        cfg.ProLimit,
			models.PlanEnterprise: cfg.EnterpriseLimit,
		},
		window: cfg.Window,
		hard:   cfg.HardQuota,
		now:    time.Now,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Limit returns the ceiling for plan, falling back to the free plan.
func (t *Tracker) Limit(plan models.Plan) int64 {
	if l, ok := t.limits[plan]; ok {
		return l
	}
	return t.limits[models.PlanFree]
}

// Check reports whether the tenant may make another model call.
func (t *Tracker) Check(ctx context.Context, tenantID string) (Status, error) {
	unlock := t.lock(tenantID)
	defer unlock()

	u, err := t.current(ctx, tenantID)
	if err != nil {
		return Status{}, err
	}
	return t.status(u), nil
}

// Record adds one request's tokens to the tenant's window.
func (t *Tracker) Record(ctx context.Context, tenantID string, input, output int) error {
	unlock := t.lock(tenantID)
	defer unlock()

	u, err := t.current(ctx, tenantID)
	if err != nil {
		return err
	}
	u.InputTokens += int64(input)
	u.OutputTokens += int64(output)
	u.RequestCount++

	if err := t.store.SaveTokenUsage(ctx, u); err != nil {
		return fmt.Errorf("save token usage: %w", err)
	}

	if st := t.status(u); st.Warning {
		t.logger.Warn("tenant nearing token quota",
			"tenant", tenantID,
			"plan", string(st.Plan),
			"percentage", st.Percentage,
		)
	}
	return nil
}

// current loads the tenant's record, rolling the window over when it elapsed.
func (t *Tracker) current(ctx context.Context, tenantID string) (*models.TokenUsage, error) {
	now := t.now()

	plan := models.PlanFree
	tenant, err := t.store.GetTenant(ctx, tenantID)
	switch {
	case err == nil:
		if tenant.Plan.Valid() {
			plan = tenant.Plan
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	u, err := t.store.GetTokenUsage(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.TokenUsage{TenantID: tenantID, Plan: plan, WindowStart: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token usage: %w", err)
	}

	u.Plan = plan
	if now.Sub(u.WindowStart) >= t.window {
		t.logger.Info("token usage window rolled over",
			"tenant", tenantID,
			"used", u.Total(),
			"window_start", u.WindowStart,
		)
		u.InputTokens, u.OutputTokens, u.RequestCount = 0, 0, 0
		u.WindowStart = now
	}
	return u, nil
}

func (t *Tracker) status(u *models.TokenUsage) Status {
	limit := t.Limit(u.Plan)
	used := u.Total()
	pct := 0.0
	if limit > 0 {
		pct = float64(used) / float64(limit) * 100
	}
	return Status{
		Exceeded:    used >= limit,
		Percentage:  pct,
		Warning:     pct > WarningPercent,
		Used:        used,
		Limit:       limit,
		Plan:        u.Plan,
		WindowStart: u.WindowStart,
	}
}

// lock serializes a tenant's read-modify-write when hard quotas are on.
func (t *Tracker) lock(tenantID string) func() {
	if !t.hard {
		return func() {}
	}
	t.mu.Lock()
	m, ok := t.locks[tenantID]
	if !ok {
		m = &sync.Mutex{}
		t.locks[tenantID] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
