package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLookup(calls *int) LookupFunc {
	return func(_ context.Context, id string) (*model.Restaurant, error) {
		*calls++
		if id == "missing" {
			return nil, ErrNotFound
		}
		return &model.Restaurant{ID: id, Name: "Cafe " + id, Active: true}, nil
	}
}

func TestCacheHitAvoidsLookup(t *testing.T) {
	calls := 0
	cache := NewCache(countingLookup(&calls), time.Minute, 10)

	r1, err := cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)
	r2, err := cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, 1, calls)
}

func TestCacheExpiry(t *testing.T) {
	calls := 0
	cache := NewCache(countingLookup(&calls), time.Minute, 10)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, err = cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry triggers a fresh lookup")
}

func TestCacheMissPropagatesNotFound(t *testing.T) {
	calls := 0
	cache := NewCache(countingLookup(&calls), time.Minute, 10)

	_, err := cache.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Negative results are not cached
	_, err = cache.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, calls)
}

func TestCacheStaysBounded(t *testing.T) {
	calls := 0
	cache := NewCache(countingLookup(&calls), time.Minute, 2)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := cache.Resolve(context.Background(), id)
		require.NoError(t, err)
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.LessOrEqual(t, len(cache.entries), 2)
}

func TestInvalidate(t *testing.T) {
	calls := 0
	cache := NewCache(countingLookup(&calls), time.Minute, 10)

	_, err := cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)

	cache.Invalidate("rest-a")

	_, err = cache.Resolve(context.Background(), "rest-a")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
