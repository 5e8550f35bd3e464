package routing

import (
	"context"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// ShippingQuote datos para estimar el costo de envío desde una ubicación candidata.
type ShippingQuote struct {
	Origin      *entity.LocationCapability
	Destination entity.ShippingAddress
	Method      entity.ShippingMethod
	DistanceKm  float64
	Rates       entity.ShippingRates // tarifas del tenant; un cotizador externo puede ignorarlas
}

// CostEstimator estima el costo de envío. Reemplazable por un cotizador real de transportistas
// sin cambiar el contrato del motor de scoring.
type CostEstimator interface {
	ShippingCost(ctx context.Context, quote ShippingQuote) (float64, error)
}

// DistanceCostEstimator costo = (base + km * tarifaPorKm) * recargo del método.
type DistanceCostEstimator struct{}

// ShippingCost implementa CostEstimator. No bloquea ni falla.
func (DistanceCostEstimator) ShippingCost(_ context.Context, q ShippingQuote) (float64, error) {
	return EstimateShippingCost(q.Rates, q.DistanceKm, q.Method), nil
}

// EstimateShippingCost fórmula del estimador local.
func EstimateShippingCost(rates entity.ShippingRates, distanceKm float64, method entity.ShippingMethod) float64 {
	return (rates.BaseCost + distanceKm*rates.PerKm) * method.Surcharge()
}
