package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingMethod método de envío solicitado por la orden (enumeración cerrada).
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
	ShippingSameDay  ShippingMethod = "same_day"
)

// ParseShippingMethod valida el método recibido. Vacío equivale a standard.
func ParseShippingMethod(s string) (ShippingMethod, bool) {
	switch ShippingMethod(s) {
	case "", ShippingStandard:
		return ShippingStandard, true
	case ShippingExpress:
		return ShippingExpress, true
	case ShippingSameDay:
		return ShippingSameDay, true
	}
	return "", false
}

// Surcharge multiplicador de costo de envío por método.
func (m ShippingMethod) Surcharge() float64 {
	switch m {
	case ShippingExpress:
		return 1.5
	case ShippingSameDay:
		return 2.0
	default:
		return 1.0
	}
}

// Coordinates punto geográfico en grados decimales.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid verifica rangos de latitud y longitud.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// LocationCapability capacidades de fulfillment de una ubicación (tienda, depósito).
// La configuran los operadores y cambia con poca frecuencia.
type LocationCapability struct {
	LocationID       string
	TenantID         string
	Name             string
	Active           bool
	CanDispatch      bool
	CanReceivePickup bool
	SupportsStandard bool
	SupportsExpress  bool
	SupportsSameDay  bool
	Priority         int // 1-10, mayor = más prioritario
	PickingCost      decimal.Decimal
	PackingCost      decimal.Decimal
	Coordinates      *Coordinates // opcional
	UpdatedAt        time.Time
}

// Supports indica si la ubicación ofrece el método de envío.
func (c *LocationCapability) Supports(m ShippingMethod) bool {
	switch m {
	case ShippingStandard:
		return c.SupportsStandard
	case ShippingExpress:
		return c.SupportsExpress
	case ShippingSameDay:
		return c.SupportsSameDay
	}
	return false
}

// OperationalCost costo de picking + packing.
func (c *LocationCapability) OperationalCost() decimal.Decimal {
	return c.PickingCost.Add(c.PackingCost)
}
