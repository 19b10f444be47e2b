package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache = (*MemoryCache)(nil)

type entry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for the memory store backend. Pub/sub
// only reaches subscribers in the same process.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]entry
	subs    map[string][]chan string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: make(map[string]entry),
		subs:    make(map[string][]chan string),
	}
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

// live returns the entry for key unless it expired. Callers hold the lock.
func (c *MemoryCache) live(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		e = entry{}
	}
	e.counter++
	e.expiresAt = c.now().Add(expiry)
	c.entries[key] = e
	return e.counter, nil
}

func (c *MemoryCache) Publish(ctx context.Context, channel, message string) error {
	c.mu.Lock()
	subs := append([]chan string(nil), c.subs[channel]...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- message:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *MemoryCache) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	ch := make(chan string, 16)
	c.mu.Lock()
	c.subs[channel] = append(c.subs[channel], ch)
	c.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		defer c.unsubscribe(channel, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-ch:
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *MemoryCache) unsubscribe(channel string, ch chan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[channel]
	for i, s := range subs {
		if s == ch {
			c.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
