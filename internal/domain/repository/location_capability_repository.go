package repository

import (
	"context"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// LocationCapabilityRepository puerto de persistencia para capacidades de ubicaciones.
type LocationCapabilityRepository interface {
	Upsert(ctx context.Context, capability *entity.LocationCapability) error
	GetByID(ctx context.Context, locationID string) (*entity.LocationCapability, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.LocationCapability, error)
}

// RoutingSettingsRepository configuración de routing por tenant.
// Get devuelve nil, nil cuando el tenant no tiene configuración propia.
type RoutingSettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*entity.RoutingSettings, error)
	Upsert(ctx context.Context, settings *entity.RoutingSettings) error
}
