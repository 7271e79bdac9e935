package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no restaurant exists for the given ID
var ErrNotFound = errors.New("restaurant not found")

// Resolver turns a restaurant ID from the request into a restaurant record.
// The perimeter depends on this interface so tests can substitute a stub.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*model.Restaurant, error)
}

// LookupFunc loads a restaurant record on a cache miss
type LookupFunc func(ctx context.Context, id string) (*model.Restaurant, error)

// GormLookup builds a LookupFunc over the restaurants registry. The registry
// table is not tenant-scoped, so a plain query is correct here.
func GormLookup(getDB func() *gorm.DB) LookupFunc {
	return func(ctx context.Context, id string) (*model.Restaurant, error) {
		var restaurant model.Restaurant
		err := getDB().WithContext(ctx).First(&restaurant, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &restaurant, nil
	}
}

type cacheEntry struct {
	restaurant model.Restaurant
	expiresAt  time.Time
}

// Cache is a bounded TTL cache of restaurant records sitting in front of the
// database. It is constructed once at startup and injected into the
// perimeter; entries are swept on write so the map stays bounded without
// relying on timers.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	lookup     LookupFunc
}

// NewCache creates a restaurant cache with the given TTL and size bound
func NewCache(lookup LookupFunc, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		lookup:     lookup,
	}
}

// Resolve implements Resolver
func (c *Cache) Resolve(ctx context.Context, id string) (*model.Restaurant, error) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok && entry.expiresAt.After(c.now()) {
		restaurant := entry.restaurant
		c.mu.Unlock()
		return &restaurant, nil
	}
	c.mu.Unlock()

	restaurant, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.store(id, *restaurant)
	c.mu.Unlock()

	return restaurant, nil
}

// Invalidate drops a cached record, e.g. after a restaurant is deactivated
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// store must be called with the lock held
func (c *Cache) store(id string, restaurant model.Restaurant) {
	now := c.now()

	if len(c.entries) >= c.maxEntries {
		for key, entry := range c.entries {
			if !entry.expiresAt.After(now) {
				delete(c.entries, key)
			}
		}
		// Still full after dropping expired entries: evict an arbitrary
		// one to keep the map bounded
		if len(c.entries) >= c.maxEntries {
			for key := range c.entries {
				delete(c.entries, key)
				break
			}
		}
	}

	c.entries[id] = cacheEntry{restaurant: restaurant, expiresAt: now.Add(c.ttl)}
}
