package entity

import (
	"fmt"
	"math"
	"time"
)

// RoutingAlgorithmVersion versión del motor de scoring registrada en cada decisión.
const RoutingAlgorithmVersion = "v1.0"

// ScoringWeights pesos del motor de scoring; deben sumar 1.0.
type ScoringWeights struct {
	Distance    float64 `json:"distance"`
	Cost        float64 `json:"cost"`
	Stock       float64 `json:"stock"`
	Priority    float64 `json:"priority"`
	Operational float64 `json:"operational"`
}

// DefaultScoringWeights pesos por defecto (distancia 0.30, costo 0.35, stock 0.15,
// prioridad 0.10, operativo 0.10).
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Distance: 0.30, Cost: 0.35, Stock: 0.15, Priority: 0.10, Operational: 0.10}
}

// weightsTolerance margen para errores de redondeo al sumar pesos decimales.
const weightsTolerance = 1e-6

// Validate verifica que los pesos sean no negativos y sumen 1.0.
func (w ScoringWeights) Validate() error {
	for _, v := range []float64{w.Distance, w.Cost, w.Stock, w.Priority, w.Operational} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("peso negativo o inválido: %v", v)
		}
	}
	sum := w.Distance + w.Cost + w.Stock + w.Priority + w.Operational
	if math.Abs(sum-1.0) > weightsTolerance {
		return fmt.Errorf("los pesos deben sumar 1.0 (suman %.4f)", sum)
	}
	return nil
}

// ShippingRates parámetros del estimador de costo de envío por distancia.
type ShippingRates struct {
	BaseCost float64 `json:"base_cost"`
	PerKm    float64 `json:"per_km"`
}

// DefaultShippingRates base $1000 + $50 por km.
func DefaultShippingRates() ShippingRates {
	return ShippingRates{BaseCost: 1000, PerKm: 50}
}

// RoutingSettings configuración de routing por tenant.
type RoutingSettings struct {
	TenantID  string
	Weights   ScoringWeights
	Rates     ShippingRates
	UpdatedAt time.Time
}

// SelectionReason motivo diagnóstico de la elección; nunca se usa en el flujo de control.
type SelectionReason string

const (
	ReasonOnlyCandidate     SelectionReason = "only_candidate"
	ReasonLowerShippingCost SelectionReason = "lower_shipping_cost"
	ReasonCloserToCustomer  SelectionReason = "closer_to_customer"
	ReasonBestBalance       SelectionReason = "best_overall_balance"
	ReasonHighestScore      SelectionReason = "highest_score"
)

// Description texto legible del motivo.
func (r SelectionReason) Description() string {
	switch r {
	case ReasonOnlyCandidate:
		return "única ubicación con stock disponible"
	case ReasonLowerShippingCost:
		return "costo de envío significativamente menor"
	case ReasonCloserToCustomer:
		return "mucho más cerca del cliente"
	case ReasonBestBalance:
		return "mejor balance costo/distancia/eficiencia"
	case ReasonHighestScore:
		return "mejor puntuación general"
	}
	return string(r)
}

// CandidateScore puntaje completo de una ubicación candidata.
type CandidateScore struct {
	LocationID       string  `json:"location_id"`
	LocationName     string  `json:"location_name"`
	DistanceKm       float64 `json:"distance_km"`
	DistanceScore    float64 `json:"distance_score"`
	ShippingCost     float64 `json:"shipping_cost"`
	CostScore        float64 `json:"cost_score"`
	StockScore       float64 `json:"stock_score"`
	PriorityScore    float64 `json:"priority_score"`
	OperationalCost  float64 `json:"operational_cost"`
	OperationalScore float64 `json:"operational_score"`
	TotalScore       float64 `json:"total_score"`
	ApproxDistance   bool    `json:"approx_distance,omitempty"` // distancia de penalización por falta de coordenadas
}

// RoutingDecision documento estructurado persistido con la orden.
type RoutingDecision struct {
	AlgorithmVersion string           `json:"algorithm_version"`
	Timestamp        time.Time        `json:"timestamp"`
	Candidates       []CandidateScore `json:"candidates"`
	Selected         string           `json:"selected"`
	SelectedName     string           `json:"selected_name"`
	Reason           SelectionReason  `json:"reason"`
	Weights          ScoringWeights   `json:"weights"`
}

// Validate verifica que la decisión tenga candidatos, selección y motivo explícitos.
func (d *RoutingDecision) Validate() error {
	if d == nil || len(d.Candidates) == 0 {
		return fmt.Errorf("decisión sin candidatos")
	}
	if d.Reason == "" {
		return fmt.Errorf("decisión sin motivo de selección")
	}
	for _, c := range d.Candidates {
		if c.LocationID == d.Selected {
			return nil
		}
	}
	return fmt.Errorf("la ubicación seleccionada %q no está entre los candidatos", d.Selected)
}
