// Package catalog resolves a tenant's property listings through a TTL cache in
// front of a pluggable source (local files, object storage or a document store).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ErrTenantNotFound is returned by a Source when the tenant has no catalog.
var ErrTenantNotFound = errors.New("tenant catalog not found")

const (
	// DefaultTTL is how long a loaded snapshot is served before reloading.
	DefaultTTL = time.Hour
	// MaxDescriptionRunes bounds listing descriptions on ingestion.
	MaxDescriptionRunes = 2000
)

// Source loads the full listing set for a tenant.
type Source interface {
	Load(ctx context.Context, tenantID string) ([]models.Property, error)
	Name() string
}

// Store serves catalog snapshots per tenant. Readers always get a complete
// snapshot; refreshes swap the cached slice wholesale.
type Store struct {
	source        Source
	cache         SnapshotCache
	ttl           time.Duration
	defaultTenant string
	singleTenant  bool
	logger        *slog.Logger
	group         singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// Option configures a Store.
type Option func(*Store)

// WithCache replaces the in-memory snapshot cache.
func WithCache(c SnapshotCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithTTL sets the snapshot lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSingleTenant collapses every tenant reference onto defaultTenant.
func WithSingleTenant(defaultTenant string) Option {
	return func(s *Store) {
		s.singleTenant = true
		s.defaultTenant = defaultTenant
	}
}

// WithLogger sets the logger used for load failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store reading from src.
func New(src Source, opts ...Option) *Store {
	s := &Store{
		source:      src,
		ttl:         DefaultTTL,
		logger:      slog.Default(),
		generations: make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(nil)
	}
	return s
}

// TenantKey maps a requested tenant onto the catalog it is served from.
func (s *Store) TenantKey(tenantID string) string {
	if s.singleTenant {
		return s.defaultTenant
	}
	return tenantID
}

// Resolve returns the tenant's catalog, loading it on miss or expiry. Concurrent
// misses for one tenant share a single load.
func (s *Store) Resolve(ctx context.Context, tenantID string) ([]models.Property, error) {
	key := s.TenantKey(tenantID)
	if key == "" {
		return nil, fmt.Errorf("resolve catalog: %w", ErrTenantNotFound)
	}
	if props, ok := s.cache.Get(key); ok {
		metrics.CatalogLookups.WithLabelValues("hit").Inc()
		return props, nil
	}
	metrics.CatalogLookups.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.generation(key)
		start := time.Now()
		props, err := s.source.Load(ctx, key)
		metrics.CatalogLoadDuration.WithLabelValues(s.source.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		props = normalize(props)
		if s.generation(key) != gen {
			// Invalidated mid-load: serve this caller, but let the next one reload.
			return props, nil
		}
		s.cache.Put(key, props, s.ttl)
		s.logger.Info("catalog loaded",
			"tenant", key,
			"source", s.source.Name(),
			"properties", len(props),
		)
		return props, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog for %s: %w", key, err)
	}
	return v.([]models.Property), nil
}

// Invalidate drops the cached snapshot so the next Resolve reloads it.
func (s *Store) Invalidate(tenantID string) {
	key := s.TenantKey(tenantID)
	s.mu.Lock()
	s.generations[key]++
	s.mu.Unlock()
	s.group.Forget(key)
	s.cache.Invalidate(key)
	s.logger.Info("catalog invalidated", "tenant", key)
}

func (s *Store) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// normalize returns a fresh slice with descriptions capped and fields trimmed.
func normalize(in []models.Property) []models.Property {
	out := make([]models.Property, 0, len(in))
	for _, p := range in {
		p.Type = strings.TrimSpace(p.Type)
		p.Description = truncateRunes(p.Description, MaxDescriptionRunes)
		out = append(out, p)
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
