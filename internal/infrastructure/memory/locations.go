package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var (
	_ repository.LocationCapabilityRepository = (*CapabilityRepo)(nil)
	_ repository.RoutingSettingsRepository    = (*SettingsRepo)(nil)
)

// CapabilityRepo capacidades de ubicaciones en memoria.
type CapabilityRepo struct {
	mu    sync.RWMutex
	items map[string]entity.LocationCapability
}

// NewCapabilityRepo crea el repositorio vacío.
func NewCapabilityRepo() *CapabilityRepo {
	return &CapabilityRepo{items: make(map[string]entity.LocationCapability)}
}

// Upsert inserta o reemplaza la capacidad de la ubicación.
func (r *CapabilityRepo) Upsert(_ context.Context, c *entity.LocationCapability) error {
	if c.LocationID == "" {
		return fmt.Errorf("%w: location_id requerido", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.UpdatedAt = time.Now().UTC()
	r.items[c.LocationID] = cloneCapability(c)
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *CapabilityRepo) GetByID(_ context.Context, locationID string) (*entity.LocationCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[locationID]
	if !ok {
		return nil, nil
	}
	out := cloneCapability(&c)
	return &out, nil
}

// ListByTenant capacidades del tenant ordenadas por LocationID.
func (r *CapabilityRepo) ListByTenant(_ context.Context, tenantID string) ([]*entity.LocationCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.LocationCapability, 0)
	for _, c := range r.items {
		if c.TenantID == tenantID {
			cp := cloneCapability(&c)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out, nil
}

func cloneCapability(c *entity.LocationCapability) entity.LocationCapability {
	out := *c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		out.Coordinates = &coords
	}
	return out
}

// SettingsRepo configuración de routing por tenant en memoria.
type SettingsRepo struct {
	mu    sync.RWMutex
	items map[string]entity.RoutingSettings
}

// NewSettingsRepo crea el repositorio vacío.
func NewSettingsRepo() *SettingsRepo {
	return &SettingsRepo{items: make(map[string]entity.RoutingSettings)}
}

// Get devuelve nil, nil si el tenant no tiene configuración.
func (r *SettingsRepo) Get(_ context.Context, tenantID string) (*entity.RoutingSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[tenantID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Upsert reemplaza la configuración del tenant.
func (r *SettingsRepo) Upsert(_ context.Context, s *entity.RoutingSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	r.items[s.TenantID] = *s
	return nil
}
