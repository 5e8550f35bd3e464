package fulfillment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	scoring "github.com/jhoicas/oms-router/internal/domain/routing"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
)

const tenant = "tenant-1"

type fakeSlips struct {
	order    *entity.FulfillmentOrder
	location *entity.LocationCapability
	err      error
}

func (f *fakeSlips) GeneratePickingSlip(_ context.Context, o *entity.FulfillmentOrder, l *entity.LocationCapability) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.order, f.location = o, l
	return []byte("%PDF-1.4"), nil
}

type env struct {
	store  *memory.Store
	ledger *inventory.LedgerUseCase
	router *routing.Router
	slips  *fakeSlips
	uc     *fulfillment.OrderUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	caps := memory.NewCapabilityRepo()
	settings := memory.NewSettingsRepo()
	ledger := inventory.NewLedgerUseCase(store, store.Movements(), store.Stock())
	cache := routing.NewCapabilityCache(caps, settings,
		entity.RoutingSettings{Weights: entity.DefaultScoringWeights(), Rates: entity.DefaultShippingRates()},
		routing.CacheConfig{TTL: time.Minute, MaxStaleness: time.Minute}, zerolog.Nop())
	router := routing.NewRouter(store.Orders(), cache, routing.NewCandidateFilter(store.Stock()),
		scoring.NewEngine(), routing.NewDecisionRecorder(store, ledger),
		routing.NewLocalOrderLocker(), routing.NewLogPublisher(zerolog.Nop()),
		routing.Config{}, zerolog.Nop())

	require.NoError(t, caps.Upsert(context.Background(), &entity.LocationCapability{
		LocationID: "loc-a", TenantID: tenant, Name: "Depósito Central",
		Active: true, CanDispatch: true, SupportsStandard: true, Priority: 5,
		PickingCost: decimal.NewFromInt(300), PackingCost: decimal.NewFromInt(200),
		Coordinates: &entity.Coordinates{Lat: -34.60, Lng: -58.38},
	}))
	_, err := ledger.Append(context.Background(), inventory.AppendInput{
		VariantID: "v1", LocationID: "loc-a", Delta: decimal.NewFromInt(10), Kind: entity.MovementInitial,
	})
	require.NoError(t, err)

	slips := &fakeSlips{}
	return &env{
		store:  store,
		ledger: ledger,
		router: router,
		slips:  slips,
		uc:     fulfillment.NewOrderUseCase(store, store.Orders(), caps, ledger, slips, zerolog.Nop()),
	}
}

func (e *env) create(t *testing.T, qty int64) *entity.FulfillmentOrder {
	t.Helper()
	o, err := e.uc.CreateOrder(context.Background(), fulfillment.CreateOrderInput{
		TenantID: tenant,
		Items: []entity.OrderItem{{
			VariantID: "v1", Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(1500),
		}},
		ShippingAddress: entity.ShippingAddress{
			City: "CABA", Coordinates: &entity.Coordinates{Lat: -34.61, Lng: -58.39},
		},
		ShippingFee: decimal.NewFromInt(800),
	})
	require.NoError(t, err)
	return o
}

func (e *env) route(t *testing.T, o *entity.FulfillmentOrder) *entity.FulfillmentOrder {
	t.Helper()
	routed, err := e.router.RouteOrder(context.Background(), tenant, o.ID, "tester")
	require.NoError(t, err)
	return routed
}

func (e *env) quantity(t *testing.T) decimal.Decimal {
	t.Helper()
	q, err := e.ledger.CurrentQuantity(context.Background(), entity.StockKey{VariantID: "v1", LocationID: "loc-a"})
	require.NoError(t, err)
	return q
}

func TestCreateOrder_CalculaTotalesYNumeroCorrelativo(t *testing.T) {
	e := newEnv(t)

	first := e.create(t, 2)
	second := e.create(t, 1)

	assert.Equal(t, entity.StatusPending, first.Status)
	assert.Equal(t, "online", first.Channel)
	assert.True(t, decimal.NewFromInt(3000).Equal(first.Subtotal))
	assert.True(t, decimal.NewFromInt(3800).Equal(first.Total))
	assert.Regexp(t, `^ORD-\d{4}-00001$`, first.Number)
	assert.Regexp(t, `^ORD-\d{4}-00002$`, second.Number)
	assert.Equal(t, int64(1), first.Version)
}

func TestCreateOrder_RechazaEntradasInvalidas(t *testing.T) {
	e := newEnv(t)
	item := entity.OrderItem{VariantID: "v1", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}

	cases := []struct {
		name string
		in   fulfillment.CreateOrderInput
		want error
	}{
		{"sin ítems", fulfillment.CreateOrderInput{TenantID: tenant}, domain.ErrInvalidInput},
		{"cantidad cero", fulfillment.CreateOrderInput{TenantID: tenant, Items: []entity.OrderItem{
			{VariantID: "v1", Quantity: decimal.Zero},
		}}, domain.ErrInvalidInput},
		{"variante repetida", fulfillment.CreateOrderInput{TenantID: tenant, Items: []entity.OrderItem{item, item}}, domain.ErrInvalidInput},
		{"método desconocido", fulfillment.CreateOrderInput{TenantID: tenant, Items: []entity.OrderItem{item}, ShippingMethod: "drone"}, domain.ErrInvalidInput},
		{"coordenadas fuera de rango", fulfillment.CreateOrderInput{TenantID: tenant, Items: []entity.OrderItem{item},
			ShippingAddress: entity.ShippingAddress{Coordinates: &entity.Coordinates{Lat: 120}}}, domain.ErrInvalidCoordinates},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.uc.CreateOrder(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAdvance_RecorreLaMaquinaDeEstados(t *testing.T) {
	e := newEnv(t)
	o := e.route(t, e.create(t, 2))
	ctx := context.Background()

	for _, next := range []entity.FulfillmentStatus{entity.StatusPreparing, entity.StatusShipped, entity.StatusDelivered} {
		updated, err := e.uc.Advance(ctx, tenant, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	got, err := e.uc.Get(ctx, tenant, o.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeliveredAt)
	assert.True(t, decimal.NewFromInt(8).Equal(e.quantity(t)), "la entrega no devuelve stock")
}

func TestAdvance_NoPermiteSaltearEstados(t *testing.T) {
	e := newEnv(t)
	o := e.create(t, 1)

	_, err := e.uc.Advance(context.Background(), tenant, o.ID, entity.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = e.uc.Advance(context.Background(), tenant, o.ID, entity.StatusAssigned)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "assigned solo se alcanza por el router")
}

func TestCancel_CompensaLaReservaEnLaMismaTransaccion(t *testing.T) {
	e := newEnv(t)
	o := e.route(t, e.create(t, 4))
	require.True(t, decimal.NewFromInt(6).Equal(e.quantity(t)))

	cancelled, err := e.uc.Cancel(context.Background(), tenant, o.ID, "operador")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, cancelled.Status)
	assert.True(t, decimal.NewFromInt(10).Equal(e.quantity(t)))

	comp, err := e.ledger.ByReference(context.Background(), inventory.CompensationReference(o.ReservationRef))
	require.NoError(t, err)
	require.Len(t, comp, 1)
	assert.Equal(t, entity.MovementAdjustmentIn, comp[0].Kind)
	assert.Equal(t, "operador", comp[0].RecordedBy)

	rec, err := e.ledger.Reconcile(context.Background(), entity.StockKey{VariantID: "v1", LocationID: "loc-a"})
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestCancel_PendingNoTocaElLedger(t *testing.T) {
	e := newEnv(t)
	o := e.create(t, 1)

	_, err := e.uc.Cancel(context.Background(), tenant, o.ID, "operador")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(e.quantity(t)))
}

func TestCancel_RechazaOrdenDespachada(t *testing.T) {
	e := newEnv(t)
	o := e.route(t, e.create(t, 1))
	ctx := context.Background()
	_, err := e.uc.Advance(ctx, tenant, o.ID, entity.StatusPreparing)
	require.NoError(t, err)
	_, err = e.uc.Advance(ctx, tenant, o.ID, entity.StatusShipped)
	require.NoError(t, err)

	_, err = e.uc.Cancel(ctx, tenant, o.ID, "operador")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, decimal.NewFromInt(9).Equal(e.quantity(t)))
}

func TestGet_OrdenDeOtroTenantNoExiste(t *testing.T) {
	e := newEnv(t)
	o := e.create(t, 1)

	_, err := e.uc.Get(context.Background(), "otro", o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.uc.Cancel(context.Background(), "otro", o.ID, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_FiltraPorEstado(t *testing.T) {
	e := newEnv(t)
	e.route(t, e.create(t, 1))
	e.create(t, 1)

	pending, err := e.uc.List(context.Background(), tenant, entity.StatusPending, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := e.uc.List(context.Background(), tenant, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPickingSlip_SoloParaOrdenesConUbicacion(t *testing.T) {
	e := newEnv(t)
	o := e.create(t, 1)

	_, _, err := e.uc.PickingSlip(context.Background(), tenant, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	routed := e.route(t, o)
	pdf, name, err := e.uc.PickingSlip(context.Background(), tenant, routed.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Equal(t, "picking_"+routed.Number+".pdf", name)
	assert.Equal(t, "Depósito Central", e.slips.location.Name)
	assert.Equal(t, routed.ID, e.slips.order.ID)
}

func TestPickingSlip_PropagaErrorDelGenerador(t *testing.T) {
	e := newEnv(t)
	o := e.route(t, e.create(t, 1))
	e.slips.err = errors.New("sin fuentes")

	_, _, err := e.uc.PickingSlip(context.Background(), tenant, o.ID)
	assert.ErrorContains(t, err, "sin fuentes")
}
