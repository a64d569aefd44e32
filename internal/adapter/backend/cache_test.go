package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingForecaster struct {
	calls int
	days  []domain.DayForecast
	err   error
}

func (m *countingForecaster) FetchForecast(_ context.Context, _ string) ([]domain.DayForecast, error) {
	m.calls++
	return m.days, m.err
}

func newTestCache(inner Forecaster, size int, clock clockwork.Clock) *CachedForecaster {
	return NewCachedForecaster(inner, size, 15*time.Minute, clock, observability.NewMetricsForTesting())
}

// --- CachedForecaster tests ---

func TestCachedForecaster_Hit(t *testing.T) {
	inner := &countingForecaster{days: []domain.DayForecast{{Date: "2026-02-24"}}}
	cached := newTestCache(inner, 10, clockwork.NewFakeClock())

	d1, err := cached.FetchForecast(context.Background(), "V001")
	require.NoError(t, err)
	d2, err := cached.FetchForecast(context.Background(), "V001")
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedForecaster_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingForecaster{days: []domain.DayForecast{{Date: "2026-02-24"}}}
	cached := newTestCache(inner, 10, clock)

	_, err := cached.FetchForecast(context.Background(), "V001")
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = cached.FetchForecast(context.Background(), "V001")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	clock.Advance(time.Minute)
	_, err = cached.FetchForecast(context.Background(), "V001")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedForecaster_DoesNotCacheErrorsOrEmpty(t *testing.T) {
	inner := &countingForecaster{err: errors.New("upstream down")}
	cached := newTestCache(inner, 10, clockwork.NewFakeClock())

	_, err := cached.FetchForecast(context.Background(), "V001")
	require.Error(t, err)
	_, err = cached.FetchForecast(context.Background(), "V001")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)

	inner.err = nil
	inner.days = []domain.DayForecast{}
	_, _ = cached.FetchForecast(context.Background(), "V001")
	_, _ = cached.FetchForecast(context.Background(), "V001")
	assert.Equal(t, 4, inner.calls)
}

func TestCachedForecaster_ReturnsCopies(t *testing.T) {
	inner := &countingForecaster{days: []domain.DayForecast{{Date: "2026-02-24", TempMax: 30}}}
	cached := newTestCache(inner, 10, clockwork.NewFakeClock())

	d1, _ := cached.FetchForecast(context.Background(), "V001")
	d1[0].TempMax = 99

	d2, _ := cached.FetchForecast(context.Background(), "V001")
	assert.Equal(t, 30.0, d2[0].TempMax)
}

// --- LRU tests ---

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	now := time.Now()
	later := now.Add(time.Hour)

	c.put("a", []domain.DayForecast{{Date: "a"}}, later)
	c.put("b", []domain.DayForecast{{Date: "b"}}, later)
	_, _ = c.get("a", now) // a becomes most recent
	c.put("c", []domain.DayForecast{{Date: "c"}}, later)

	_, okA := c.get("a", now)
	_, okB := c.get("b", now)
	_, okC := c.get("c", now)
	assert.True(t, okA)
	assert.False(t, okB, "b should be evicted as least recently used")
	assert.True(t, okC)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	now := time.Now()

	c.put("a", []domain.DayForecast{{Date: "old"}}, now.Add(time.Minute))
	c.put("a", []domain.DayForecast{{Date: "new"}}, now.Add(time.Hour))

	v, ok := c.get("a", now.Add(30*time.Minute))
	require.True(t, ok)
	assert.Equal(t, "new", v[0].Date)
	assert.Equal(t, 1, c.size())
}
