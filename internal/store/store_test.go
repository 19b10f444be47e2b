package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("propchat_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// backends returns every Store implementation under test. Postgres is
// skipped in short mode.
func backends(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	return map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemoryStore() },
		"postgres": func(t *testing.T) store.Store {
			if testing.Short() {
				t.Skip("skipping integration test")
			}
			return store.NewPostgresStore(setupTestDB(t))
		},
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, s store.Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

// --- Tenant Tests ---

func TestTenant_EnsureIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		first, err := s.EnsureTenant(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.Equal(t, "agent-a.com", first.ID)
		assert.Equal(t, models.PlanFree, first.Plan)
		assert.True(t, first.Active)

		_, err = s.UpsertTenant(ctx, &models.Tenant{ID: "agent-a.com", Name: "Agent A", Plan: models.PlanPro, Active: true})
		require.NoError(t, err)

		again, err := s.EnsureTenant(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.Equal(t, "Agent A", again.Name)
		assert.Equal(t, models.PlanPro, again.Plan)
	})
}

func TestTenant_GetNotFound(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		_, err := s.GetTenant(context.Background(), "nobody.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTenant_DeactivateHidesFromActiveList(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		for _, id := range []string{"c.com", "a.com", "b.com"} {
			_, err := s.EnsureTenant(ctx, id)
			require.NoError(t, err)
		}

		require.NoError(t, s.DeactivateTenant(ctx, "b.com"))
		assert.ErrorIs(t, s.DeactivateTenant(ctx, "missing.com"), store.ErrNotFound)

		active, err := s.ListActiveTenants(ctx)
		require.NoError(t, err)
		var ids []string
		for _, tn := range active {
			ids = append(ids, tn.ID)
		}
		assert.Equal(t, []string{"a.com", "c.com"}, ids)

		b, err := s.GetTenant(ctx, "b.com")
		require.NoError(t, err)
		assert.False(t, b.Active)
	})
}

// --- Network Tests ---

func TestNetwork_HierarchyAndCoBrokerage(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		_, err := s.EnsureTenant(ctx, "agent-a.com")
		require.NoError(t, err)

		_, err = s.GetHierarchy(ctx, "agent-a.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetCoBrokerage(ctx, "agent-a.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.PutHierarchy(ctx, &models.OfficeHierarchy{
			TenantID: "agent-a.com", OfficeTenant: "office.com", NationalTenant: "national.com",
		}))
		require.NoError(t, s.PutHierarchy(ctx, &models.OfficeHierarchy{
			TenantID: "agent-a.com", OfficeTenant: "office-2.com", NationalTenant: "national.com",
		}))
		h, err := s.GetHierarchy(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.Equal(t, "office-2.com", h.OfficeTenant)
		assert.Equal(t, "national.com", h.NationalTenant)

		require.NoError(t, s.PutCoBrokerage(ctx, &models.CoBrokerageConfig{
			TenantID: "agent-a.com", Enabled: true, SharedTenants: []string{"peer.com"},
		}))
		c, err := s.GetCoBrokerage(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.True(t, c.Enabled)
		assert.Equal(t, []string{"peer.com"}, c.SharedTenants)

		require.NoError(t, s.PutCoBrokerage(ctx, &models.CoBrokerageConfig{TenantID: "agent-a.com"}))
		c, err = s.GetCoBrokerage(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.False(t, c.Enabled)
		assert.Empty(t, c.SharedTenants)
	})
}

// --- Token Usage Tests ---

func TestTokenUsage_SaveAndGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		_, err := s.GetTokenUsage(ctx, "agent-a.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		u := &models.TokenUsage{
			TenantID: "agent-a.com", InputTokens: 120, OutputTokens: 80, RequestCount: 2,
			Plan: models.PlanPro, WindowStart: start,
		}
		require.NoError(t, s.SaveTokenUsage(ctx, u))

		u.InputTokens = 200
		require.NoError(t, s.SaveTokenUsage(ctx, u))

		got, err := s.GetTokenUsage(ctx, "agent-a.com")
		require.NoError(t, err)
		assert.Equal(t, int64(280), got.Total())
		assert.Equal(t, models.PlanPro, got.Plan)
		assert.True(t, start.Equal(got.WindowStart))
	})
}

// --- Audit Tests ---

func TestAudit_AppendOnly(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		for i, kind := range []models.WarningKind{models.WarningFakePrice, models.WarningCountMismatch} {
			require.NoError(t, s.AppendAudit(ctx, &models.AuditRecord{
				Collection: models.CollectionValidationWarnings,
				TenantID:   "agent-a.com",
				Payload:    models.ValidationWarning{TenantID: "agent-a.com", Kind: kind, Evidence: []string{"x"}},
				CreatedAt:  time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
			}))
		}
		require.NoError(t, s.AppendAudit(ctx, &models.AuditRecord{
			Collection: models.CollectionSecurityIncidents,
			TenantID:   "agent-a.com",
			Payload:    models.SecurityIncident{Message: "ignore previous instructions", Blocked: true},
		}))

		recs, err := s.ListAudit(ctx, "agent-a.com", models.CollectionValidationWarnings, 10)
		require.NoError(t, err)
		require.Len(t, recs, 2)

		var newest models.ValidationWarning
		raw, ok := recs[0].Payload.(json.RawMessage)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal(raw, &newest))
		assert.Equal(t, models.WarningCountMismatch, newest.Kind)

		recs, err = s.ListAudit(ctx, "agent-a.com", models.CollectionSecurityIncidents, 10)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})
}

// --- Feedback Tests ---

func TestFeedback_StatsAndRecentNegative(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		ratings := []string{
			models.RatingPositive, models.RatingNegative, models.RatingNegative,
			models.RatingPositive, models.RatingNegative,
		}
		for i, r := range ratings {
			require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{
				ID:          uuid.New(),
				TenantID:    "agent-a.com",
				Rating:      r,
				UserMessage: "question " + string(rune('a'+i)),
				BotResponse: "answer",
				CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, s.CreateFeedback(ctx, &models.Feedback{
			ID: uuid.New(), TenantID: "other.com", Rating: models.RatingNegative, CreatedAt: base,
		}))

		st, err := s.FeedbackStats(ctx, "agent-a.com", 20)
		require.NoError(t, err)
		assert.Equal(t, 5, st.Total)
		assert.Equal(t, 3, st.Negative)

		st, err = s.FeedbackStats(ctx, "agent-a.com", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Total)
		assert.Equal(t, 1, st.Negative)
		assert.InDelta(t, 0.5, st.NegativeRatio(), 0.0001)

		neg, err := s.RecentNegativeFeedback(ctx, "agent-a.com", 2)
		require.NoError(t, err)
		require.Len(t, neg, 2)
		assert.Equal(t, "question e", neg[0].UserMessage)
		assert.Equal(t, "question c", neg[1].UserMessage)
	})
}

func TestFeedback_DuplicateID(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		f := &models.Feedback{ID: uuid.New(), TenantID: "agent-a.com", Rating: models.RatingPositive, CreatedAt: time.Now().UTC()}
		require.NoError(t, s.CreateFeedback(ctx, f))
		assert.ErrorIs(t, s.CreateFeedback(ctx, f), store.ErrDuplicateKey)
	})
}

// --- Visitor Tests ---

func TestVisitor_Create(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		v := &models.Visitor{
			ID: uuid.New(), TenantID: "agent-a.com", Name: "Budi", Email: "budi@example.com",
			Phone: "08123456789", PreferredDate: "2025-06-02", Source: "schedule_viewing",
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.CreateVisitor(ctx, v))
		assert.ErrorIs(t, s.CreateVisitor(ctx, v), store.ErrDuplicateKey)
	})
}

// --- API Key Tests ---

func TestAPIKey_Lifecycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Microsecond)

		key := &models.APIKey{
			ID:        uuid.New(),
			TenantID:  "agent-a.com",
			Name:      "ops",
			KeyHash:   "bcrypt-hash-here",
			KeyPrefix: "pc_abcde",
			Scopes:    []string{"admin"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, s.CreateAPIKey(ctx, key))

		dup := *key
		dup.ID = uuid.New()
		assert.ErrorIs(t, s.CreateAPIKey(ctx, &dup), store.ErrDuplicateKey)

		keys, err := s.GetAPIKeyByPrefix(ctx, "pc_abcde")
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, key.ID, keys[0].ID)
		assert.Equal(t, []string{"admin"}, keys[0].Scopes)

		require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
		listed, err := s.ListAPIKeys(ctx, "agent-a.com")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.NotNil(t, listed[0].LastUsedAt)

		assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, "other.com"), store.ErrNotFound)
		require.NoError(t, s.RevokeAPIKey(ctx, key.ID, "agent-a.com"))
		assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, "agent-a.com"), store.ErrNotFound)

		keys, err = s.GetAPIKeyByPrefix(ctx, "pc_abcde")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
