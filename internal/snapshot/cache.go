package snapshot

import (
	"context"
	"sync"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

// Cache memoizes the latest snapshot of a Store until invalidated.
// It is safe for concurrent use.
type Cache struct {
	store Store

	mu      sync.Mutex
	loaded  bool
	day     int
	records []listing.Record
}

// NewCache wraps store.
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Latest returns the cached latest snapshot, loading it on first use or after
// Invalidate. Callers must not modify the returned records.
func (c *Cache) Latest(ctx context.Context) (int, []listing.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.day, c.records, nil
	}
	day, records, err := c.store.Latest(ctx)
	if err != nil {
		return 0, nil, err
	}
	c.day, c.records, c.loaded = day, records, true
	return day, records, nil
}

// Load passes through to the underlying store.
func (c *Cache) Load(ctx context.Context, day int) ([]listing.Record, error) {
	return c.store.Load(ctx, day)
}

// Save passes through to the underlying store and drops the cached snapshot.
func (c *Cache) Save(ctx context.Context, day int, records []listing.Record) error {
	err := c.store.Save(ctx, day, records)
	c.Invalidate()
	return err
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.records = nil
	c.mu.Unlock()
}
