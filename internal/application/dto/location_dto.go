package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoordinatesDTO punto geográfico en grados decimales.
type CoordinatesDTO struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// UpsertLocationRequest body para PUT /api/locations/:id.
type UpsertLocationRequest struct {
	Name             string          `json:"name" validate:"required,min=1,max=200"`
	Active           bool            `json:"active"`
	CanDispatch      bool            `json:"can_dispatch"`
	CanReceivePickup bool            `json:"can_receive_pickup"`
	SupportsStandard bool            `json:"supports_standard"`
	SupportsExpress  bool            `json:"supports_express"`
	SupportsSameDay  bool            `json:"supports_same_day"`
	Priority         int             `json:"priority" validate:"min=1,max=10"`
	PickingCost      decimal.Decimal `json:"picking_cost"`
	PackingCost      decimal.Decimal `json:"packing_cost"`
	Coordinates      *CoordinatesDTO `json:"coordinates" validate:"omitempty"`
}

// LocationResponse salida de una capacidad de ubicación.
type LocationResponse struct {
	LocationID       string          `json:"location_id"`
	Name             string          `json:"name"`
	Active           bool            `json:"active"`
	CanDispatch      bool            `json:"can_dispatch"`
	CanReceivePickup bool            `json:"can_receive_pickup"`
	SupportsStandard bool            `json:"supports_standard"`
	SupportsExpress  bool            `json:"supports_express"`
	SupportsSameDay  bool            `json:"supports_same_day"`
	Priority         int             `json:"priority"`
	PickingCost      decimal.Decimal `json:"picking_cost"`
	PackingCost      decimal.Decimal `json:"packing_cost"`
	Coordinates      *CoordinatesDTO `json:"coordinates,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// LocationListResponse ubicaciones del tenant.
type LocationListResponse struct {
	Items []LocationResponse `json:"items"`
}

// ScoringWeightsDTO pesos del scoring; deben sumar 1.0.
type ScoringWeightsDTO struct {
	Distance    float64 `json:"distance" validate:"min=0,max=1"`
	Cost        float64 `json:"cost" validate:"min=0,max=1"`
	Stock       float64 `json:"stock" validate:"min=0,max=1"`
	Priority    float64 `json:"priority" validate:"min=0,max=1"`
	Operational float64 `json:"operational" validate:"min=0,max=1"`
}

// RoutingSettingsRequest body para PUT /api/settings/routing.
type RoutingSettingsRequest struct {
	Weights          ScoringWeightsDTO `json:"weights" validate:"required"`
	ShippingBaseCost float64           `json:"shipping_base_cost" validate:"min=0"`
	ShippingPerKm    float64           `json:"shipping_per_km" validate:"min=0"`
}

// RoutingSettingsResponse configuración efectiva del tenant.
type RoutingSettingsResponse struct {
	Weights          ScoringWeightsDTO `json:"weights"`
	ShippingBaseCost float64           `json:"shipping_base_cost"`
	ShippingPerKm    float64           `json:"shipping_per_km"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}
