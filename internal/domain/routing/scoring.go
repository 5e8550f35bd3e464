package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// Umbrales de normalización (lineales entre mínimo y máximo).
const (
	DistanceFullScoreKm = 5.0
	DistanceZeroScoreKm = 100.0
	CostFullScore       = 1000.0
	CostZeroScore       = 10000.0

	// StockScoreQualified todo candidato ya pasó el filtro binario de stock.
	StockScoreQualified = 100.0
)

// Umbrales del motivo de selección (ganador vs segundo).
const (
	reasonCostRatio     = 0.8
	reasonDistanceRatio = 0.7
	reasonScoreRatio    = 1.2
)

// NormalizeDistance 100 hasta 5 km, baja linealmente hasta 0 en 100 km o más.
func NormalizeDistance(km float64) float64 {
	return linearDescending(km, DistanceFullScoreKm, DistanceZeroScoreKm)
}

// NormalizeCost 100 hasta $1000, baja linealmente hasta 0 en $10000 o más.
// Se usa tanto para el costo de envío como para el costo operativo.
func NormalizeCost(cost float64) float64 {
	return linearDescending(cost, CostFullScore, CostZeroScore)
}

// NormalizePriority prioridad 1-10 escalada a 0-100.
func NormalizePriority(priority int) float64 {
	return float64(priority) * 10
}

func linearDescending(v, full, zero float64) float64 {
	switch {
	case v <= full:
		return 100
	case v >= zero:
		return 0
	}
	return 100 * (zero - v) / (zero - full)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Engine combina los sub-scores normalizados en un score ponderado por candidato.
type Engine struct {
	distance DistanceEstimator
	cost     CostEstimator
	now      func() time.Time
}

// Option configura el Engine.
type Option func(*Engine)

// WithDistanceEstimator reemplaza el estimador de distancia.
func WithDistanceEstimator(d DistanceEstimator) Option { return func(e *Engine) { e.distance = d } }

// WithCostEstimator reemplaza el estimador de costo (ej. cotizador de transportista).
func WithCostEstimator(c CostEstimator) Option { return func(e *Engine) { e.cost = c } }

// WithClock fija el reloj usado para el timestamp de la decisión.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine construye el motor con Haversine y el estimador de costo por distancia.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		distance: HaversineEstimator{},
		cost:     DistanceCostEstimator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score calcula el desglose de una ubicación candidata para la orden.
func (e *Engine) Score(
	ctx context.Context,
	order *entity.FulfillmentOrder,
	loc *entity.LocationCapability,
	settings entity.RoutingSettings,
) (entity.CandidateScore, error) {
	w := settings.Weights

	km, err := e.distance.DistanceKm(loc.Coordinates, order.ShippingAddress.Coordinates)
	approx := false
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCoordinates) {
			return entity.CandidateScore{}, err
		}
		approx = true
	}
	distanceScore := NormalizeDistance(km)

	shipping, err := e.cost.ShippingCost(ctx, ShippingQuote{
		Origin:      loc,
		Destination: order.ShippingAddress,
		Method:      order.ShippingMethod,
		DistanceKm:  km,
		Rates:       settings.Rates,
	})
	if err != nil {
		return entity.CandidateScore{}, fmt.Errorf("costo de envío %s: %w", loc.LocationID, err)
	}
	costScore := NormalizeCost(shipping)

	priorityScore := NormalizePriority(loc.Priority)
	operational := loc.OperationalCost().InexactFloat64()
	operationalScore := NormalizeCost(operational)

	total := w.Distance*distanceScore +
		w.Cost*costScore +
		w.Stock*StockScoreQualified +
		w.Priority*priorityScore +
		w.Operational*operationalScore

	return entity.CandidateScore{
		LocationID:       loc.LocationID,
		LocationName:     loc.Name,
		DistanceKm:       round2(km),
		DistanceScore:    round2(distanceScore),
		ShippingCost:     round2(shipping),
		CostScore:        round2(costScore),
		StockScore:       StockScoreQualified,
		PriorityScore:    priorityScore,
		OperationalCost:  round2(operational),
		OperationalScore: round2(operationalScore),
		TotalScore:       round2(total),
		ApproxDistance:   approx,
	}, nil
}

// Rank puntúa y ordena los candidatos: mayor score total primero; los empates exactos
// (al centésimo) se resuelven por el identificador de ubicación más bajo.
func (e *Engine) Rank(
	ctx context.Context,
	order *entity.FulfillmentOrder,
	candidates []*entity.LocationCapability,
	settings entity.RoutingSettings,
) ([]entity.CandidateScore, error) {
	if err := settings.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	scored := make([]entity.CandidateScore, 0, len(candidates))
	for _, loc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := e.Score(ctx, order, loc, settings)
		if err != nil {
			return nil, err
		}
		scored = append(scored, s)
	}
	SortCandidates(scored)
	return scored, nil
}

// SortCandidates ordena por TotalScore descendente y LocationID ascendente.
func SortCandidates(scored []entity.CandidateScore) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].TotalScore != scored[j].TotalScore {
			return scored[i].TotalScore > scored[j].TotalScore
		}
		return scored[i].LocationID < scored[j].LocationID
	})
}

// Decide ordena los candidatos y arma la decisión de routing completa.
func (e *Engine) Decide(
	ctx context.Context,
	order *entity.FulfillmentOrder,
	candidates []*entity.LocationCapability,
	settings entity.RoutingSettings,
) (*entity.RoutingDecision, error) {
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidateLocation
	}
	ranked, err := e.Rank(ctx, order, candidates, settings)
	if err != nil {
		return nil, err
	}
	best := ranked[0]
	return &entity.RoutingDecision{
		AlgorithmVersion: entity.RoutingAlgorithmVersion,
		Timestamp:        e.now().UTC(),
		Candidates:       ranked,
		Selected:         best.LocationID,
		SelectedName:     best.LocationName,
		Reason:           SelectReason(ranked),
		Weights:          settings.Weights,
	}, nil
}

// SelectReason compara ganador y segundo para explicar la elección (solo diagnóstico).
func SelectReason(ranked []entity.CandidateScore) entity.SelectionReason {
	if len(ranked) < 2 {
		return entity.ReasonOnlyCandidate
	}
	best, second := ranked[0], ranked[1]
	switch {
	case best.ShippingCost < second.ShippingCost*reasonCostRatio:
		return entity.ReasonLowerShippingCost
	case best.DistanceKm < second.DistanceKm*reasonDistanceRatio:
		return entity.ReasonCloserToCustomer
	case best.TotalScore > second.TotalScore*reasonScoreRatio:
		return entity.ReasonBestBalance
	}
	return entity.ReasonHighestScore
}
