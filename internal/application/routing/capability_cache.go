package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// CapabilitySnapshot capacidades y configuración de un tenant en un instante.
// Se pasa explícitamente a cada llamada de ruteo y no debe modificarse.
type CapabilitySnapshot struct {
	TenantID  string
	Locations []*entity.LocationCapability
	Settings  entity.RoutingSettings
	LoadedAt  time.Time
}

// CacheConfig política de refresco.
type CacheConfig struct {
	TTL          time.Duration // vigencia de un snapshot
	MaxStaleness time.Duration // edad máxima servible si el refresco falla
}

// cacheEntry es inmutable una vez publicada; Invalidate la reemplaza.
type cacheEntry struct {
	snap    *CapabilitySnapshot
	invalid bool
}

// CapabilityCache mantiene un snapshot por tenant. Los refrescos concurrentes del mismo
// tenant se resuelven con una sola lectura (singleflight). Cada Invalidate sube la generación
// del tenant; una carga iniciada en una generación anterior no se guarda.
type CapabilityCache struct {
	locations repository.LocationCapabilityRepository
	settings  repository.RoutingSettingsRepository
	defaults  entity.RoutingSettings
	cfg       CacheConfig
	log       zerolog.Logger
	now       func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	gens    map[string]uint64
}

// NewCapabilityCache construye la caché. defaults se usa para tenants sin configuración propia.
func NewCapabilityCache(
	locations repository.LocationCapabilityRepository,
	settings repository.RoutingSettingsRepository,
	defaults entity.RoutingSettings,
	cfg CacheConfig,
	log zerolog.Logger,
) *CapabilityCache {
	return &CapabilityCache{
		locations: locations,
		settings:  settings,
		defaults:  defaults,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		entries:   make(map[string]*cacheEntry),
		gens:      make(map[string]uint64),
	}
}

// Snapshot devuelve el snapshot vigente del tenant, refrescándolo si venció.
// Si el refresco falla se sirve el anterior mientras no supere MaxStaleness;
// si no hay uno servible devuelve domain.ErrCapabilitiesUnavailable.
func (c *CapabilityCache) Snapshot(ctx context.Context, tenantID string) (*CapabilitySnapshot, error) {
	now := c.now()

	c.mu.RLock()
	var prev *CapabilitySnapshot
	fresh := false
	if e := c.entries[tenantID]; e != nil {
		prev = e.snap
		fresh = !e.invalid && now.Sub(prev.LoadedAt) < c.cfg.TTL
	}
	gen := c.gens[tenantID]
	c.mu.RUnlock()

	if fresh {
		return prev, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", tenantID, gen), func() (any, error) {
		return c.load(ctx, tenantID, gen)
	})
	if err == nil {
		return v.(*CapabilitySnapshot), nil
	}

	if prev != nil {
		age := now.Sub(prev.LoadedAt)
		if age < c.cfg.MaxStaleness {
			c.log.Warn().Err(err).
				Str("tenant_id", tenantID).
				Dur("age", age).
				Msg("sirviendo snapshot de capacidades vencido")
			return prev, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrCapabilitiesUnavailable, err)
}

// Invalidate fuerza el refresco en la próxima lectura; el snapshot actual sigue
// disponible como respaldo.
func (c *CapabilityCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[tenantID]++
	if e, ok := c.entries[tenantID]; ok {
		c.entries[tenantID] = &cacheEntry{snap: e.snap, invalid: true}
	}
}

// Defaults configuración usada cuando el tenant no tiene una propia.
func (c *CapabilityCache) Defaults() entity.RoutingSettings {
	return c.defaults
}

func (c *CapabilityCache) load(ctx context.Context, tenantID string, gen uint64) (*CapabilitySnapshot, error) {
	locs, err := c.locations.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listar capacidades: %w", err)
	}
	settings, err := c.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("leer configuración de routing: %w", err)
	}
	resolved := c.defaults
	resolved.TenantID = tenantID
	if settings != nil {
		resolved = *settings
	}
	snap := &CapabilitySnapshot{
		TenantID:  tenantID,
		Locations: locs,
		Settings:  resolved,
		LoadedAt:  c.now(),
	}
	c.mu.Lock()
	if c.gens[tenantID] == gen {
		c.entries[tenantID] = &cacheEntry{snap: snap}
	}
	c.mu.Unlock()
	return snap, nil
}
