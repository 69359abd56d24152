package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/argus/internal/core"
)

type cacheKey struct {
	symbol string
	days   int
}

type cacheEntry struct {
	series  core.PriceSeries
	fetched time.Time
}

// Cache memoizes fetches per (symbol, lookback). Callers always get a copy.
type Cache struct {
	next PriceProvider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCache wraps next. A zero ttl keeps entries until Reset.
func NewCache(next PriceProvider, ttl time.Duration) *Cache {
	return &Cache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *Cache) Name() string {
	return c.next.Name()
}

func (c *Cache) Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error) {
	key := cacheKey{symbol: strings.ToUpper(symbol), days: lookbackDays}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && (c.ttl <= 0 || c.now().Sub(e.fetched) < c.ttl) {
		c.mu.Unlock()
		return e.series.Clone(), nil
	}
	c.mu.Unlock()

	series, err := c.next.Fetch(ctx, symbol, lookbackDays)
	if err != nil {
		return core.PriceSeries{}, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{series: series.Clone(), fetched: c.now()}
	c.mu.Unlock()
	return series, nil
}

// Reset drops all cached series
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
}
