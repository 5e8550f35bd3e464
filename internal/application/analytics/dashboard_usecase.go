// Package analytics contiene los casos de uso de reportes de routing: tasa de
// asignación automática y distribución de órdenes por ubicación.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
)

// RoutingAnalyticsUseCase resume las decisiones de routing de un período.
//
// Fuentes de datos: órdenes creadas en la ventana y capacidades del tenant (para nombres).
// Solo lectura; no toca el ledger.
type RoutingAnalyticsUseCase struct {
	orders    repository.FulfillmentOrderRepository
	locations repository.LocationCapabilityRepository
	now       func() time.Time
}

// NewRoutingAnalyticsUseCase construye el caso de uso.
func NewRoutingAnalyticsUseCase(
	orders repository.FulfillmentOrderRepository,
	locations repository.LocationCapabilityRepository,
) *RoutingAnalyticsUseCase {
	return &RoutingAnalyticsUseCase{orders: orders, locations: locations, now: time.Now}
}

// GetSummary construye el RoutingAnalyticsDTO de los últimos days días.
//
// Dos llamadas en paralelo:
//  1. ListCreatedSince(desde) → total, ruteadas, distribución
//  2. ListByTenant            → nombres de ubicaciones
func (uc *RoutingAnalyticsUseCase) GetSummary(ctx context.Context, tenantID string, days int) (*dto.RoutingAnalyticsDTO, error) {
	if days == 0 {
		days = defaultWindowDays
	}
	if days < 0 || days > maxWindowDays {
		return nil, fmt.Errorf("%w: días debe estar entre 1 y %d", domain.ErrInvalidInput, maxWindowDays)
	}
	since := uc.now().UTC().AddDate(0, 0, -days)

	type ordersResult struct {
		orders []*entity.FulfillmentOrder
		err    error
	}
	type locationsResult struct {
		locations []*entity.LocationCapability
		err       error
	}
	ordersCh := make(chan ordersResult, 1)
	locsCh := make(chan locationsResult, 1)

	go func() {
		o, err := uc.orders.ListCreatedSince(ctx, tenantID, since)
		ordersCh <- ordersResult{o, err}
	}()
	go func() {
		l, err := uc.locations.ListByTenant(ctx, tenantID)
		locsCh <- locationsResult{l, err}
	}()

	or := <-ordersCh
	lr := <-locsCh
	if or.err != nil {
		return nil, fmt.Errorf("analytics: órdenes: %w", or.err)
	}
	if lr.err != nil {
		return nil, fmt.Errorf("analytics: ubicaciones: %w", lr.err)
	}

	names := make(map[string]string, len(lr.locations))
	for _, l := range lr.locations {
		names[l.LocationID] = l.Name
	}

	// ── Conteo ─────────────────────────────────────────────────────────────────
	// Ruteada = tiene ubicación asignada, aunque después se haya cancelado.
	counts := make(map[string]int)
	routed := 0
	for _, o := range or.orders {
		if o.AssignedLocationID == nil {
			continue
		}
		routed++
		counts[*o.AssignedLocationID]++
	}

	out := &dto.RoutingAnalyticsDTO{
		PeriodDays:   days,
		Since:        since,
		TotalOrders:  len(or.orders),
		RoutedOrders: routed,
		Distribution: make([]dto.LocationShareDTO, 0, len(counts)),
	}
	if len(or.orders) > 0 {
		out.AutoAssignmentRate = decimal.NewFromInt(int64(routed)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(len(or.orders)))).
			Round(2)
	}
	for id, n := range counts {
		share := decimal.NewFromInt(int64(n)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(routed))).Round(2)
		out.Distribution = append(out.Distribution, dto.LocationShareDTO{
			LocationID:   id,
			LocationName: names[id],
			Orders:       n,
			Percentage:   share,
		})
	}
	// Mayor cantidad primero; empate por ID para que la respuesta sea estable.
	sort.Slice(out.Distribution, func(i, j int) bool {
		a, b := out.Distribution[i], out.Distribution[j]
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		return a.LocationID < b.LocationID
	})
	if len(out.Distribution) > 0 {
		top := out.Distribution[0]
		out.MostUsedLocation = &top
	}
	return out, nil
}
