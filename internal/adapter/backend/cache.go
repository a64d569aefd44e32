package backend

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Forecaster fetches a village forecast.
type Forecaster interface {
	FetchForecast(ctx context.Context, villageID string) ([]domain.DayForecast, error)
}

// CachedForecaster wraps a Forecaster with an in-memory LRU cache whose
// entries expire after a fixed TTL.
type CachedForecaster struct {
	inner   Forecaster
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedForecaster creates a cache decorator around a forecaster.
func NewCachedForecaster(inner Forecaster, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedForecaster {
	return &CachedForecaster{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

func (c *CachedForecaster) FetchForecast(ctx context.Context, villageID string) ([]domain.DayForecast, error) {
	now := c.clock.Now()
	if days, ok := c.cache.get(villageID, now); ok {
		c.metrics.ForecastCache.WithLabelValues("hit").Inc()
		return cloneDays(days), nil
	}
	c.metrics.ForecastCache.WithLabelValues("miss").Inc()

	days, err := c.inner.FetchForecast(ctx, villageID)
	if err != nil {
		return nil, err
	}
	// Empty forecasts are not cached.
	if len(days) > 0 {
		c.cache.put(villageID, cloneDays(days), now.Add(c.ttl))
	}
	return days, nil
}

func cloneDays(days []domain.DayForecast) []domain.DayForecast {
	out := make([]domain.DayForecast, len(days))
	copy(out, days)
	return out
}

// lruCache holds at most maxEntries forecasts, evicting the least recently
// used. Expired entries are dropped when read.
type lruCache struct {
	maxEntries int

	mu    sync.Mutex
	order *list.List // front is most recently used
	index map[string]*list.Element
}

type forecastEntry struct {
	villageID string
	days      []domain.DayForecast
	expiresAt time.Time
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

func (c *lruCache) get(villageID string, now time.Time) ([]domain.DayForecast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[villageID]
	if !ok {
		return nil, false
	}
	fe := el.Value.(*forecastEntry)
	if !now.Before(fe.expiresAt) {
		c.drop(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return fe.days, true
}

func (c *lruCache) put(villageID string, days []domain.DayForecast, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[villageID]; ok {
		fe := el.Value.(*forecastEntry)
		fe.days, fe.expiresAt = days, expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.index[villageID] = c.order.PushFront(&forecastEntry{villageID: villageID, days: days, expiresAt: expiresAt})
	for c.order.Len() > c.maxEntries {
		c.drop(c.order.Back())
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// drop removes el; c.mu must be held.
func (c *lruCache) drop(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*forecastEntry).villageID)
}
