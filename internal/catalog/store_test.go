package catalog_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/propchat/internal/catalog"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource counts loads and serves fixed catalogs per tenant.
type fakeSource struct {
	mu       sync.Mutex
	catalogs map[string][]models.Property
	loads    atomic.Int32
	delay    time.Duration
	err      error

	// started and release let a test hold a load in flight.
	started chan struct{}
	release chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(_ context.Context, tenantID string) ([]models.Property, error) {
	f.loads.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	props, ok := f.catalogs[tenantID]
	if !ok {
		return nil, catalog.ErrTenantNotFound
	}
	return props, nil
}

func (f *fakeSource) set(tenantID string, props []models.Property) {
	f.mu.Lock()
	f.catalogs[tenantID] = props
	f.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFake() *fakeSource {
	return &fakeSource{catalogs: map[string][]models.Property{
		"agent-a.com": {{ID: "a1", Title: "Rumah A"}},
		"agent-b.com": {{ID: "b1", Title: "Rumah B"}, {ID: "b2", Title: "Ruko B"}},
	}}
}

func TestResolve_CachesUntilTTL(t *testing.T) {
	src := newFake()
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := catalog.New(src,
		catalog.WithCache(catalog.NewMemoryCache(clk.Now)),
		catalog.WithTTL(10*time.Minute),
	)
	ctx := context.Background()

	props, err := s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)
	assert.Len(t, props, 1)

	_, err = s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.loads.Load())

	clk.Advance(10 * time.Minute)
	_, err = s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestResolve_InvalidateForcesReload(t *testing.T) {
	src := newFake()
	s := catalog.New(src)
	ctx := context.Background()

	_, err := s.Resolve(ctx, "agent-b.com")
	require.NoError(t, err)

	src.set("agent-b.com", []models.Property{{ID: "b3"}})
	props, err := s.Resolve(ctx, "agent-b.com")
	require.NoError(t, err)
	assert.Len(t, props, 2, "still serving the cached snapshot")

	s.Invalidate("agent-b.com")
	props, err = s.Resolve(ctx, "agent-b.com")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "b3", props[0].ID)
}

func TestResolve_TruncatesLongDescriptions(t *testing.T) {
	src := newFake()
	long := strings.Repeat("é", catalog.MaxDescriptionRunes+50)
	src.set("agent-c.com", []models.Property{{ID: "c1", Description: long, Type: " Sale "}})
	s := catalog.New(src)

	props, err := s.Resolve(context.Background(), "agent-c.com")
	require.NoError(t, err)
	assert.Equal(t, catalog.MaxDescriptionRunes, utf8.RuneCountInString(props[0].Description))
	assert.Equal(t, "Sale", props[0].Type)
}

func TestResolve_UnknownTenant(t *testing.T) {
	s := catalog.New(newFake())

	_, err := s.Resolve(context.Background(), "nobody.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrTenantNotFound))
}

func TestResolve_ErrorsAreNotCached(t *testing.T) {
	src := newFake()
	src.err = errors.New("bucket unavailable")
	s := catalog.New(src)
	ctx := context.Background()

	_, err := s.Resolve(ctx, "agent-a.com")
	require.Error(t, err)

	src.err = nil
	props, err := s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)
	assert.Len(t, props, 1)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestResolve_ConcurrentMissesShareOneLoad(t *testing.T) {
	src := newFake()
	src.delay = 50 * time.Millisecond
	s := catalog.New(src)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			props, err := s.Resolve(context.Background(), "agent-b.com")
			assert.NoError(t, err)
			assert.Len(t, props, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.loads.Load())
}

func TestResolve_InvalidateDuringLoadIsNotLost(t *testing.T) {
	src := newFake()
	src.started = make(chan struct{}, 1)
	src.release = make(chan struct{})
	s := catalog.New(src)

	done := make(chan []models.Property)
	go func() {
		props, err := s.Resolve(context.Background(), "agent-a.com")
		assert.NoError(t, err)
		done <- props
	}()

	<-src.started
	src.set("agent-a.com", []models.Property{{ID: "a2", Title: "Rumah A baru"}})
	s.Invalidate("agent-a.com")
	close(src.release)
	<-done

	props, err := s.Resolve(context.Background(), "agent-a.com")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "a2", props[0].ID)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestResolve_SingleTenantMode(t *testing.T) {
	src := newFake()
	s := catalog.New(src, catalog.WithSingleTenant("agent-a.com"))

	props, err := s.Resolve(context.Background(), "whatever.com")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "a1", props[0].ID)
	assert.Equal(t, "agent-a.com", s.TenantKey(""))
}

func TestMemoryCache_InvalidateAndLen(t *testing.T) {
	c := catalog.NewMemoryCache(nil)
	c.Put("t1", []models.Property{{ID: "1"}}, time.Minute)
	c.Put("t2", nil, time.Minute)
	assert.Equal(t, 2, c.Len())

	c.Invalidate("t1")
	_, ok := c.Get("t1")
	assert.False(t, ok)
	_, ok = c.Get("t2")
	assert.True(t, ok)
}

func TestWatch_InvalidatesAnnouncedTenants(t *testing.T) {
	src := newFake()
	s := catalog.New(src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)

	changes := make(chan string, 2)
	done := make(chan struct{})
	go func() {
		catalog.Watch(ctx, changes, s)
		close(done)
	}()

	changes <- "  "
	changes <- "agent-a.com"
	close(changes)
	<-done

	_, err = s.Resolve(ctx, "agent-a.com")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.loads.Load())
}
