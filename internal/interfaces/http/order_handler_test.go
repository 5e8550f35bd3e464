package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/application/analytics"
	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	scoring "github.com/jhoicas/oms-router/internal/domain/routing"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
	"github.com/jhoicas/oms-router/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/oms-router/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/oms-router/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// App completa sobre el store en memoria
// ──────────────────────────────────────────────────────────────────────────────

func buildAPI(t *testing.T) *fiber.App {
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

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		OrderUC:     fulfillment.NewOrderUseCase(store, store.Orders(), caps, ledger, pdf.NewPickingSlipGenerator(), zerolog.Nop()),
		Routing:     router,
		Ledger:      ledger,
		LocationUC:  routing.NewLocationUseCase(caps, settings, cache),
		AnalyticsUC: analytics.NewRoutingAnalyticsUseCase(store.Orders(), caps),
		JWTSecret:   testJWTSecret,
	})
	return app
}

func bearer(t *testing.T, tenantID, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, tenantID, role, testIssuer, testExpMin)
	require.NoError(t, err)
	return "Bearer " + tok
}

func call(t *testing.T, app *fiber.App, method, path, auth string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out), string(raw))
}

// seed configura loc-a (cerca, cara) y loc-b (lejos, barata) con stock de v1.
func seed(t *testing.T, app *fiber.App) {
	t.Helper()
	admin := bearer(t, testTenantID, apphttp.RoleAdmin)
	for id, loc := range map[string]map[string]interface{}{
		"loc-a": {"lat": -34.60, "lng": -58.38, "picking": "900"},
		"loc-b": {"lat": -34.70, "lng": -58.38, "picking": "100"},
	} {
		status, raw := call(t, app, http.MethodPut, "/api/locations/"+id, admin, map[string]interface{}{
			"name": "Sucursal " + id, "active": true, "can_dispatch": true, "supports_standard": true,
			"priority": 5, "picking_cost": loc["picking"], "packing_cost": "100",
			"coordinates": map[string]interface{}{"lat": loc["lat"], "lng": loc["lng"]},
		})
		require.Equal(t, http.StatusOK, status, string(raw))
		status, raw = call(t, app, http.MethodPost, "/api/inventory/movements", admin, map[string]interface{}{
			"variant_id": "v1", "location_id": id, "delta": "5", "kind": "initial",
		})
		require.Equal(t, http.StatusCreated, status, string(raw))
	}
}

func createOrder(t *testing.T, app *fiber.App, qty string, autoRoute bool) dto.OrderResponse {
	t.Helper()
	status, raw := call(t, app, http.MethodPost, "/api/orders", bearer(t, testTenantID, apphttp.RoleOperator), map[string]interface{}{
		"items":            []map[string]interface{}{{"variant_id": "v1", "quantity": qty, "unit_price": "1000"}},
		"shipping_address": map[string]interface{}{"city": "CABA", "coordinates": map[string]interface{}{"lat": -34.61, "lng": -58.38}},
		"auto_route":       autoRoute,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var out dto.OrderResponse
	decode(t, raw, &out)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_CrearYRutearOrdenReservaStock(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	op := bearer(t, testTenantID, apphttp.RoleOperator)

	order := createOrder(t, app, "2", true)
	require.Nil(t, order.RoutingError)
	assert.Equal(t, "assigned", order.Status)
	require.NotNil(t, order.AssignedLocationID)

	status, raw := call(t, app, http.MethodGet, "/api/orders/"+order.ID+"/routing", op, nil)
	require.Equal(t, http.StatusOK, status)
	var routingOut dto.OrderRoutingResponse
	decode(t, raw, &routingOut)
	require.NotNil(t, routingOut.Decision)
	assert.Len(t, routingOut.Decision.Candidates, 2)
	assert.Equal(t, *order.AssignedLocationID, routingOut.Decision.Selected)
	assert.NotEmpty(t, routingOut.Decision.Reason)

	status, raw = call(t, app, http.MethodGet, "/api/inventory/stock?variant_ids=v1", op, nil)
	require.Equal(t, http.StatusOK, status)
	var balances []dto.StockBalanceResponse
	decode(t, raw, &balances)
	total := 0.0
	for _, b := range balances {
		f, _ := b.Quantity.Float64()
		total += f
	}
	assert.Equal(t, 8.0, total)
}

func TestAPI_CancelarDevuelveStock(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	op := bearer(t, testTenantID, apphttp.RoleOperator)
	order := createOrder(t, app, "5", true)
	require.Equal(t, "assigned", order.Status)

	status, raw := call(t, app, http.MethodPost, "/api/orders/"+order.ID+"/cancel", op, nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = call(t, app, http.MethodGet,
		"/api/inventory/reconcile?variant_id=v1&location_id="+*order.AssignedLocationID, op, nil)
	require.Equal(t, http.StatusOK, status)
	var rec dto.ReconciliationResponse
	decode(t, raw, &rec)
	assert.True(t, rec.Consistent)
	assert.Equal(t, "5", rec.Balance.String())
}

func TestAPI_SinCandidatoResponde422YQuedaBackordered(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	op := bearer(t, testTenantID, apphttp.RoleOperator)

	order := createOrder(t, app, "50", false)
	status, raw := call(t, app, http.MethodPost, "/api/orders/"+order.ID+"/route", op, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(raw), "NO_CANDIDATE_LOCATION")

	status, raw = call(t, app, http.MethodGet, "/api/orders/"+order.ID, op, nil)
	require.Equal(t, http.StatusOK, status)
	var got dto.OrderResponse
	decode(t, raw, &got)
	assert.Equal(t, "analyzing", got.Status)
	assert.True(t, got.Backordered)
}

func TestAPI_AutoRouteSinStockInformaErrorSinPerderLaOrden(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)

	order := createOrder(t, app, "50", true)
	require.NotNil(t, order.RoutingError)
	assert.Equal(t, "NO_CANDIDATE_LOCATION", order.RoutingError.Code)
	assert.Equal(t, "analyzing", order.Status)
}

func TestAPI_AjusteQueDejariaSaldoNegativoResponde409(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)

	status, raw := call(t, app, http.MethodPost, "/api/inventory/movements", bearer(t, testTenantID, apphttp.RoleOperator),
		map[string]interface{}{"variant_id": "v1", "location_id": "loc-a", "delta": "-6", "kind": "adjustment_out"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(raw), "INSUFFICIENT_STOCK")
}

func TestAPI_ValidacionDevuelveDetallePorCampo(t *testing.T) {
	app := buildAPI(t)

	status, raw := call(t, app, http.MethodPost, "/api/orders", bearer(t, testTenantID, apphttp.RoleOperator),
		map[string]interface{}{"items": []map[string]interface{}{}, "shipping_method": "drone"})
	assert.Equal(t, http.StatusBadRequest, status)
	var e dto.ErrorResponse
	decode(t, raw, &e)
	assert.Equal(t, "VALIDATION", e.Code)
	assert.Equal(t, "min", e.Details["CreateOrderRequest.Items"])
	assert.Equal(t, "oneof", e.Details["CreateOrderRequest.ShippingMethod"])
}

func TestAPI_OrdenDeOtroTenantResponde404(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	order := createOrder(t, app, "1", false)

	status, _ := call(t, app, http.MethodGet, "/api/orders/"+order.ID,
		bearer(t, "otro-tenant", apphttp.RoleOperator), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_OperadorNoPuedeConfigurarUbicaciones(t *testing.T) {
	app := buildAPI(t)

	status, _ := call(t, app, http.MethodPut, "/api/locations/loc-x", bearer(t, testTenantID, apphttp.RoleOperator),
		map[string]interface{}{"name": "X", "priority": 5})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAPI_PreviewNoEscribe(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	op := bearer(t, testTenantID, apphttp.RoleOperator)

	status, raw := call(t, app, http.MethodPost, "/api/routing/preview", op, map[string]interface{}{
		"items":            []map[string]interface{}{{"variant_id": "v1", "quantity": "3"}},
		"shipping_address": map[string]interface{}{"coordinates": map[string]interface{}{"lat": -34.61, "lng": -58.38}},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var d dto.RoutingDecisionResponse
	decode(t, raw, &d)
	assert.Len(t, d.Candidates, 2)

	status, raw = call(t, app, http.MethodGet, "/api/orders", op, nil)
	require.Equal(t, http.StatusOK, status)
	var list dto.OrderListResponse
	decode(t, raw, &list)
	assert.Empty(t, list.Items)
}

func TestAPI_PickingSlipDevuelvePDF(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	order := createOrder(t, app, "1", true)
	require.Equal(t, "assigned", order.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID+"/picking-slip", nil)
	req.Header.Set("Authorization", bearer(t, testTenantID, apphttp.RoleDispatch))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "picking_"+order.Number+".pdf")
}

func TestAPI_AnaliticaDeRouting(t *testing.T) {
	app := buildAPI(t)
	seed(t, app)
	createOrder(t, app, "1", true)
	createOrder(t, app, "50", true)

	status, raw := call(t, app, http.MethodGet, "/api/analytics/routing?days=7", bearer(t, testTenantID, apphttp.RoleOperator), nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var a dto.RoutingAnalyticsDTO
	decode(t, raw, &a)
	assert.Equal(t, 2, a.TotalOrders)
	assert.Equal(t, 1, a.RoutedOrders)
	assert.Equal(t, "50", a.AutoAssignmentRate.String())
}
