package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
)

type flakyLocations struct {
	*memory.CapabilityRepo
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *flakyLocations) ListByTenant(ctx context.Context, tenantID string) ([]*entity.LocationCapability, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("base de datos caída")
	}
	return f.CapabilityRepo.ListByTenant(ctx, tenantID)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(t *testing.T) (*CapabilityCache, *flakyLocations, *memory.SettingsRepo, *fakeClock) {
	t.Helper()
	locs := &flakyLocations{CapabilityRepo: memory.NewCapabilityRepo()}
	require.NoError(t, locs.Upsert(context.Background(), &entity.LocationCapability{
		LocationID: "loc-a", TenantID: "t1", Active: true, CanDispatch: true, Priority: 5,
	}))
	settings := memory.NewSettingsRepo()
	defaults := entity.RoutingSettings{Weights: entity.DefaultScoringWeights(), Rates: entity.DefaultShippingRates()}
	cache := NewCapabilityCache(locs, settings, defaults,
		CacheConfig{TTL: 30 * time.Second, MaxStaleness: 5 * time.Minute}, zerolog.Nop())
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	cache.now = clock.now
	return cache, locs, settings, clock
}

func TestCapabilityCache_ReusaSnapshotVigente(t *testing.T) {
	cache, locs, _, clock := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	clock.advance(10 * time.Second)
	second, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), locs.calls.Load())
	assert.Equal(t, "t1", first.Settings.TenantID)
	assert.Equal(t, entity.DefaultScoringWeights(), first.Settings.Weights)
}

func TestCapabilityCache_SirveVencidoDentroDeLaTolerancia(t *testing.T) {
	cache, locs, _, clock := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	locs.fail.Store(true)
	clock.advance(time.Minute)
	stale, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Same(t, first, stale)

	clock.advance(5 * time.Minute)
	_, err = cache.Snapshot(ctx, "t1")
	require.ErrorIs(t, err, domain.ErrCapabilitiesUnavailable)
	assert.True(t, domain.IsTransient(err))

	locs.fail.Store(false)
	fresh, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
}

func TestCapabilityCache_SinSnapshotPrevioFalla(t *testing.T) {
	cache, locs, _, _ := newTestCache(t)
	locs.fail.Store(true)

	_, err := cache.Snapshot(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrCapabilitiesUnavailable)
}

func TestCapabilityCache_InvalidateRecargaConfiguracion(t *testing.T) {
	cache, _, settings, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	custom := entity.RoutingSettings{
		TenantID: "t1",
		Weights:  entity.ScoringWeights{Distance: 0.5, Cost: 0.5},
		Rates:    entity.ShippingRates{BaseCost: 800, PerKm: 40},
	}
	require.NoError(t, settings.Upsert(ctx, &custom))
	cache.Invalidate("t1")

	snap, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, snap.Settings.Weights.Distance)
	assert.Equal(t, 800.0, snap.Settings.Rates.BaseCost)
}

func TestCapabilityCache_SnapshotEInvalidateConcurrentes(t *testing.T) {
	cache, _, _, clock := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := cache.Snapshot(ctx, "t1")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			cache.Invalidate("t1")
			clock.advance(time.Second)
		}()
	}
	wg.Wait()

	snap, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, snap.Locations, 1)
}

type gatedLocations struct {
	*memory.CapabilityRepo
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (g *gatedLocations) ListByTenant(ctx context.Context, tenantID string) ([]*entity.LocationCapability, error) {
	g.calls.Add(1)
	list, err := g.CapabilityRepo.ListByTenant(ctx, tenantID)
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	return list, err
}

func TestCapabilityCache_CargaPreviaAInvalidateNoSeGuarda(t *testing.T) {
	locs := &gatedLocations{
		CapabilityRepo: memory.NewCapabilityRepo(),
		entered:        make(chan struct{}),
		gate:           make(chan struct{}),
	}
	ctx := context.Background()
	require.NoError(t, locs.Upsert(ctx, &entity.LocationCapability{
		LocationID: "loc-a", TenantID: "t1", Active: true, CanDispatch: true, Priority: 5,
	}))
	defaults := entity.RoutingSettings{Weights: entity.DefaultScoringWeights(), Rates: entity.DefaultShippingRates()}
	cache := NewCapabilityCache(locs, memory.NewSettingsRepo(), defaults,
		CacheConfig{TTL: time.Minute, MaxStaleness: 5 * time.Minute}, zerolog.Nop())

	done := make(chan *CapabilitySnapshot, 1)
	go func() {
		snap, err := cache.Snapshot(ctx, "t1")
		assert.NoError(t, err)
		done <- snap
	}()
	<-locs.entered

	require.NoError(t, locs.Upsert(ctx, &entity.LocationCapability{
		LocationID: "loc-b", TenantID: "t1", Active: true, CanDispatch: true, Priority: 5,
	}))
	cache.Invalidate("t1")
	close(locs.gate)
	old := <-done
	assert.Len(t, old.Locations, 1)

	snap, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, snap.Locations, 2)
	assert.Equal(t, int32(2), locs.calls.Load())
}
