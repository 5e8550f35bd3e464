package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/analytics"
	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/application/routing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	OrderUC     *fulfillment.OrderUseCase
	Routing     *routing.Router
	Ledger      *inventory.LedgerUseCase
	LocationUC  *routing.LocationUseCase
	AnalyticsUC *analytics.RoutingAnalyticsUseCase
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(RoleAdmin, RoleOperator, RoleDispatch)
	operators := RequireRole(RoleAdmin, RoleOperator)
	admins := RequireRole(RoleAdmin)

	// Orders
	orders := protected.Group("/orders")
	orderHandler := NewOrderHandler(deps.OrderUC, deps.Routing)
	orders.Post("/", operators, orderHandler.Create)
	orders.Get("/", anyRole, orderHandler.List)
	orders.Get("/:id", anyRole, orderHandler.GetByID)
	orders.Get("/:id/routing", anyRole, orderHandler.GetRouting)
	orders.Post("/:id/route", operators, orderHandler.Route)
	orders.Post("/:id/reroute", operators, orderHandler.Reroute)
	orders.Post("/:id/status", anyRole, orderHandler.Advance)
	orders.Post("/:id/cancel", operators, orderHandler.Cancel)
	orders.Get("/:id/picking-slip", anyRole, orderHandler.PickingSlip)

	// Routing
	protected.Post("/routing/preview", anyRole, orderHandler.Preview)

	// Analytics
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsUC)
	protected.Get("/analytics/routing", operators, analyticsHandler.GetRouting)

	// Inventory ledger
	invGroup := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Ledger, deps.LocationUC)
	invGroup.Post("/movements", operators, inventoryHandler.RegisterMovement)
	invGroup.Get("/movements", anyRole, inventoryHandler.ListMovements)
	invGroup.Post("/reservations", operators, inventoryHandler.Reserve)
	invGroup.Post("/transfers", operators, inventoryHandler.Transfer)
	invGroup.Get("/stock", anyRole, inventoryHandler.Stock)
	invGroup.Get("/reconcile", operators, inventoryHandler.Reconcile)

	// Locations y settings (configuración: solo admin)
	locationHandler := NewLocationHandler(deps.LocationUC)
	protected.Get("/locations", anyRole, locationHandler.List)
	protected.Put("/locations/:id", admins, locationHandler.Upsert)
	protected.Get("/settings/routing", anyRole, locationHandler.GetSettings)
	protected.Put("/settings/routing", admins, locationHandler.UpdateSettings)
}
