package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	s     Settings
	err   error
	loads int
}

func (p *countingProvider) Load(ctx context.Context) (Settings, error) {
	p.loads++
	if p.err != nil {
		return Settings{}, p.err
	}
	return p.s, nil
}

func TestCacheLoadsOnceWithinTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{s: Settings{DisableThresholdDays: 14, AdjustThresholdDays: 7, AdjustEndDateOffsetDays: 7}}

	cache := NewCache(client, inner, time.Minute, nil)

	for i := 0; i < 3; i++ {
		s, err := cache.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, 14, s.DisableThresholdDays)
	}
	require.Equal(t, 1, inner.loads)
}

func TestCacheExpiryReloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{s: Settings{DisableThresholdDays: 14}}

	cache := NewCache(client, inner, time.Minute, nil)

	_, err := cache.Load(context.Background())
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, inner.loads)
}

func TestCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{s: Settings{DisableThresholdDays: 14}}

	cache := NewCache(client, inner, time.Minute, nil)

	_, err := cache.Load(context.Background())
	require.NoError(t, err)

	cache.Invalidate(context.Background())

	_, err = cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, inner.loads)
}

func TestCacheCorruptEntryFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{s: Settings{DisableThresholdDays: 14}}

	require.NoError(t, mr.Set(cacheKey, "not-json"))

	cache := NewCache(client, inner, time.Minute, nil)
	s, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 14, s.DisableThresholdDays)
	require.Equal(t, 1, inner.loads)
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{s: Settings{DisableThresholdDays: 14}}

	mr.Close()

	cache := NewCache(client, inner, time.Minute, nil)
	s, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 14, s.DisableThresholdDays)
	require.Equal(t, 1, inner.loads)
}

func TestCacheConfigurationErrorPropagates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{err: &ConfigurationError{Key: KeyDisableThresholdDays, Reason: "missing"}}

	cache := NewCache(client, inner, time.Minute, nil)
	_, err := cache.Load(context.Background())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
