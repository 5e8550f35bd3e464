package routing

import (
	"context"
	"fmt"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// LocationUseCase administra capacidades de ubicaciones y la configuración de routing del tenant.
// Cada escritura invalida el snapshot del tenant.
type LocationUseCase struct {
	locations repository.LocationCapabilityRepository
	settings  repository.RoutingSettingsRepository
	cache     *CapabilityCache
}

// NewLocationUseCase construye el caso de uso.
func NewLocationUseCase(
	locations repository.LocationCapabilityRepository,
	settings repository.RoutingSettingsRepository,
	cache *CapabilityCache,
) *LocationUseCase {
	return &LocationUseCase{locations: locations, settings: settings, cache: cache}
}

// UpsertCapability valida y guarda la capacidad. Una ubicación de otro tenant no se puede pisar.
func (uc *LocationUseCase) UpsertCapability(ctx context.Context, c *entity.LocationCapability) error {
	if c.LocationID == "" || c.TenantID == "" {
		return fmt.Errorf("%w: ubicación y tenant son obligatorios", domain.ErrInvalidInput)
	}
	if c.Priority < 1 || c.Priority > 10 {
		return fmt.Errorf("%w: prioridad debe estar entre 1 y 10", domain.ErrInvalidInput)
	}
	if c.PickingCost.IsNegative() || c.PackingCost.IsNegative() {
		return fmt.Errorf("%w: costos operativos negativos", domain.ErrInvalidInput)
	}
	if c.Coordinates != nil && !c.Coordinates.Valid() {
		return fmt.Errorf("%w: lat %v lng %v", domain.ErrInvalidCoordinates, c.Coordinates.Lat, c.Coordinates.Lng)
	}
	existing, err := uc.locations.GetByID(ctx, c.LocationID)
	if err != nil {
		return err
	}
	if existing != nil && existing.TenantID != c.TenantID {
		return domain.ErrForbidden
	}
	if err := uc.locations.Upsert(ctx, c); err != nil {
		return err
	}
	uc.cache.Invalidate(c.TenantID)
	return nil
}

// ListCapabilities capacidades del tenant.
func (uc *LocationUseCase) ListCapabilities(ctx context.Context, tenantID string) ([]*entity.LocationCapability, error) {
	return uc.locations.ListByTenant(ctx, tenantID)
}

// Settings configuración efectiva del tenant (propia o por defecto).
func (uc *LocationUseCase) Settings(ctx context.Context, tenantID string) (*entity.RoutingSettings, error) {
	s, err := uc.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		d := uc.cache.Defaults()
		d.TenantID = tenantID
		return &d, nil
	}
	return s, nil
}

// UpdateSettings valida pesos y tarifas y reemplaza la configuración del tenant.
func (uc *LocationUseCase) UpdateSettings(ctx context.Context, s *entity.RoutingSettings) error {
	if err := s.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if s.Rates.BaseCost < 0 || s.Rates.PerKm < 0 {
		return fmt.Errorf("%w: tarifas de envío negativas", domain.ErrInvalidInput)
	}
	if err := uc.settings.Upsert(ctx, s); err != nil {
		return err
	}
	uc.cache.Invalidate(s.TenantID)
	return nil
}

// EnsureOwned verifica que la ubicación esté configurada para el tenant.
// Una ubicación de otro tenant se informa como inexistente.
func (uc *LocationUseCase) EnsureOwned(ctx context.Context, tenantID string, locationIDs ...string) error {
	for _, id := range locationIDs {
		c, err := uc.locations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil || c.TenantID != tenantID {
			return fmt.Errorf("ubicación %s: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}
