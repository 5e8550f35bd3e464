package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var _ repository.LocationCapabilityRepository = (*LocationCapabilityRepo)(nil)
var _ repository.RoutingSettingsRepository = (*RoutingSettingsRepo)(nil)

const capabilityColumns = `location_id, tenant_id, name, active, can_dispatch, can_receive_pickup,
	supports_standard, supports_express, supports_same_day, priority, picking_cost, packing_cost,
	lat, lng, updated_at`

// LocationCapabilityRepo capacidades de ubicaciones sobre PostgreSQL.
type LocationCapabilityRepo struct {
	pool *pgxpool.Pool
}

// NewLocationCapabilityRepository construye el adaptador de persistencia para ubicaciones.
func NewLocationCapabilityRepository(pool *pgxpool.Pool) *LocationCapabilityRepo {
	return &LocationCapabilityRepo{pool: pool}
}

// Upsert inserta o reemplaza la capacidad y completa UpdatedAt.
func (r *LocationCapabilityRepo) Upsert(ctx context.Context, c *entity.LocationCapability) error {
	var lat, lng *float64
	if c.Coordinates != nil {
		lat, lng = &c.Coordinates.Lat, &c.Coordinates.Lng
	}
	query := `
		INSERT INTO location_capabilities (` + capabilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (location_id) DO UPDATE SET
			name = EXCLUDED.name, active = EXCLUDED.active, can_dispatch = EXCLUDED.can_dispatch,
			can_receive_pickup = EXCLUDED.can_receive_pickup, supports_standard = EXCLUDED.supports_standard,
			supports_express = EXCLUDED.supports_express, supports_same_day = EXCLUDED.supports_same_day,
			priority = EXCLUDED.priority, picking_cost = EXCLUDED.picking_cost,
			packing_cost = EXCLUDED.packing_cost, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			updated_at = now()
		WHERE location_capabilities.tenant_id = EXCLUDED.tenant_id
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		c.LocationID, c.TenantID, c.Name, c.Active, c.CanDispatch, c.CanReceivePickup,
		c.SupportsStandard, c.SupportsExpress, c.SupportsSameDay, c.Priority,
		c.PickingCost, c.PackingCost, lat, lng,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ubicación %s pertenece a otro tenant: %w", c.LocationID, domain.ErrForbidden)
		}
		return mapError("upsert location capability", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *LocationCapabilityRepo) GetByID(ctx context.Context, locationID string) (*entity.LocationCapability, error) {
	query := `SELECT ` + capabilityColumns + ` FROM location_capabilities WHERE location_id = $1`
	c, err := scanCapability(r.pool.QueryRow(ctx, query, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location capability: %w", err)
	}
	return c, nil
}

// ListByTenant capacidades del tenant ordenadas por ID.
func (r *LocationCapabilityRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.LocationCapability, error) {
	query := `SELECT ` + capabilityColumns + `
		FROM location_capabilities WHERE tenant_id = $1 ORDER BY location_id`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list location capabilities: %w", err)
	}
	defer rows.Close()
	list := []*entity.LocationCapability{}
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location capability: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanCapability(row rowScanner) (*entity.LocationCapability, error) {
	var c entity.LocationCapability
	var lat, lng *float64
	err := row.Scan(
		&c.LocationID, &c.TenantID, &c.Name, &c.Active, &c.CanDispatch, &c.CanReceivePickup,
		&c.SupportsStandard, &c.SupportsExpress, &c.SupportsSameDay, &c.Priority,
		&c.PickingCost, &c.PackingCost, &lat, &lng, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		c.Coordinates = &entity.Coordinates{Lat: *lat, Lng: *lng}
	}
	return &c, nil
}

// RoutingSettingsRepo configuración de routing por tenant sobre PostgreSQL.
type RoutingSettingsRepo struct {
	pool *pgxpool.Pool
}

// NewRoutingSettingsRepository construye el adaptador.
func NewRoutingSettingsRepository(pool *pgxpool.Pool) *RoutingSettingsRepo {
	return &RoutingSettingsRepo{pool: pool}
}

// Get devuelve nil, nil si el tenant no tiene configuración propia.
func (r *RoutingSettingsRepo) Get(ctx context.Context, tenantID string) (*entity.RoutingSettings, error) {
	query := `
		SELECT tenant_id, weights, shipping_base_cost, shipping_per_km, updated_at
		FROM routing_settings WHERE tenant_id = $1`
	var s entity.RoutingSettings
	var weights []byte
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&s.TenantID, &weights, &s.Rates.BaseCost, &s.Rates.PerKm, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get routing settings: %w", err)
	}
	if err := json.Unmarshal(weights, &s.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &s, nil
}

// Upsert reemplaza la configuración del tenant.
func (r *RoutingSettingsRepo) Upsert(ctx context.Context, s *entity.RoutingSettings) error {
	weights, err := json.Marshal(s.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	query := `
		INSERT INTO routing_settings (tenant_id, weights, shipping_base_cost, shipping_per_km, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			weights = EXCLUDED.weights,
			shipping_base_cost = EXCLUDED.shipping_base_cost,
			shipping_per_km = EXCLUDED.shipping_per_km,
			updated_at = now()
		RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query, s.TenantID, weights, s.Rates.BaseCost, s.Rates.PerKm).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert routing settings: %w", err)
	}
	return nil
}
