package routing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// CandidateFilter selecciona las ubicaciones que pueden cubrir la orden completa desde
// una sola ubicación. Solo lee; puede repetirse o abandonarse sin efectos.
type CandidateFilter struct {
	stock repository.StockRepository
}

// NewCandidateFilter construye el filtro.
func NewCandidateFilter(stock repository.StockRepository) *CandidateFilter {
	return &CandidateFilter{stock: stock}
}

// Filter devuelve los candidatos ordenados por LocationID, o domain.ErrNoCandidateLocation.
// holdings suma al disponible lo que la propia orden ya tiene reservado (re-ruteo).
func (f *CandidateFilter) Filter(
	ctx context.Context,
	order *entity.FulfillmentOrder,
	snap *CapabilitySnapshot,
	holdings map[entity.StockKey]decimal.Decimal,
) ([]*entity.LocationCapability, error) {
	need := make(map[string]decimal.Decimal, len(order.Items))
	variants := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		if _, seen := need[it.VariantID]; !seen {
			variants = append(variants, it.VariantID)
		}
		need[it.VariantID] = need[it.VariantID].Add(it.Quantity)
	}
	if len(variants) == 0 {
		return nil, domain.ErrNoCandidateLocation
	}

	balances, err := f.stock.ListByVariants(ctx, variants)
	if err != nil {
		return nil, err
	}
	available := make(map[entity.StockKey]decimal.Decimal, len(balances)+len(holdings))
	for _, b := range balances {
		available[b.Key()] = b.Quantity
	}
	for k, q := range holdings {
		available[k] = available[k].Add(q)
	}

	out := make([]*entity.LocationCapability, 0, len(snap.Locations))
	for _, loc := range snap.Locations {
		if !loc.Active || !loc.CanDispatch || !loc.Supports(order.ShippingMethod) {
			continue
		}
		if coversAll(loc.LocationID, variants, need, available) {
			out = append(out, loc)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoCandidateLocation
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out, nil
}

func coversAll(locationID string, variants []string, need map[string]decimal.Decimal, available map[entity.StockKey]decimal.Decimal) bool {
	for _, v := range variants {
		k := entity.StockKey{VariantID: v, LocationID: locationID}
		if available[k].LessThan(need[v]) {
			return false
		}
	}
	return true
}
