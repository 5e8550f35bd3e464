package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// OrderHandler maneja las peticiones HTTP de órdenes de fulfillment y su routing (protegido).
type OrderHandler struct {
	orders *fulfillment.OrderUseCase
	router *routing.Router
}

// NewOrderHandler construye el handler.
func NewOrderHandler(orders *fulfillment.OrderUseCase, router *routing.Router) *OrderHandler {
	return &OrderHandler{orders: orders, router: router}
}

// Create godoc
// @Summary      Crear orden de fulfillment
// @Description  Registra la orden en pending. Con auto_route=true la rutea en la misma petición;
//
//	si no hay ubicación candidata la orden queda backordered y se informa en routing_error.
//
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateOrderRequest  true  "Ítems, dirección y método de envío"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	var in dto.CreateOrderRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	order, err := h.orders.CreateOrder(c.UserContext(), fulfillment.CreateOrderInput{
		TenantID:        tenantID,
		Channel:         in.Channel,
		Items:           fromItemsDTO(in.Items),
		ShippingAddress: fromAddressDTO(in.ShippingAddress),
		ShippingMethod:  in.ShippingMethod,
		ShippingFee:     in.ShippingFee,
	})
	if err != nil {
		return respondError(c, err)
	}
	out := toOrderResponse(order)
	if in.AutoRoute {
		routed, rErr := h.router.RouteOrder(c.UserContext(), tenantID, order.ID, GetUserID(c))
		if rErr == nil {
			out = toOrderResponse(routed)
		} else {
			// La orden ya existe: el fallo de routing se informa sin perder el 201.
			if cur, gErr := h.orders.Get(c.UserContext(), tenantID, order.ID); gErr == nil {
				out = toOrderResponse(cur)
			}
			_, code := errorStatus(rErr)
			out.RoutingError = &dto.ErrorResponse{Code: code, Message: rErr.Error()}
		}
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar órdenes
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "Estado (vacío = todos)"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.OrderListResponse
// @Router       /api/orders [get]
func (h *OrderHandler) List(c *fiber.Ctx) error {
	var q dto.OrderListQuery
	if err := parseQuery(c, &q); err != nil {
		return handled(err)
	}
	page := dto.PageRequest{Limit: q.Limit, Offset: q.Offset}
	page.DefaultPage()
	list, err := h.orders.List(c.UserContext(), GetTenantID(c), entity.FulfillmentStatus(q.Status), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.OrderResponse, 0, len(list))
	for _, o := range list {
		items = append(items, toOrderResponse(o))
	}
	return c.JSON(dto.OrderListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}})
}

// GetByID godoc
// @Summary      Obtener orden por ID
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	o, err := h.orders.Get(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderResponse(o))
}

// GetRouting godoc
// @Summary      Decisión de routing de la orden
// @Description  Ranking completo de candidatas con cada sub-puntaje, ubicación elegida y motivo.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderRoutingResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/routing [get]
func (h *OrderHandler) GetRouting(c *fiber.Ctx) error {
	o, err := h.orders.Get(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderRoutingResponse(o))
}

// Route godoc
// @Summary      Rutear orden
// @Description  Elige la ubicación de despacho y reserva el stock en una sola transacción.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderRoutingResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/route [post]
func (h *OrderHandler) Route(c *fiber.Ctx) error {
	o, err := h.router.RouteOrder(c.UserContext(), GetTenantID(c), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderRoutingResponse(o))
}

// Reroute godoc
// @Summary      Re-rutear orden
// @Description  Recalcula la ubicación de una orden analyzing o assigned; libera la reserva anterior.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderRoutingResponse
// @Router       /api/orders/{id}/reroute [post]
func (h *OrderHandler) Reroute(c *fiber.Ctx) error {
	o, err := h.router.Reroute(c.UserContext(), GetTenantID(c), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderRoutingResponse(o))
}

// Advance godoc
// @Summary      Avanzar estado de la orden
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "ID de la orden"
// @Param        body  body  dto.AdvanceStatusRequest  true  "preparing | shipped | delivered"
// @Success      200   {object}  dto.OrderResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/status [post]
func (h *OrderHandler) Advance(c *fiber.Ctx) error {
	var in dto.AdvanceStatusRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	o, err := h.orders.Advance(c.UserContext(), GetTenantID(c), c.Params("id"), entity.FulfillmentStatus(in.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderResponse(o))
}

// Cancel godoc
// @Summary      Cancelar orden
// @Description  Si la orden tenía stock reservado se compensa en la misma transacción.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	o, err := h.orders.Cancel(c.UserContext(), GetTenantID(c), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toOrderResponse(o))
}

// PickingSlip godoc
// @Summary      Hoja de picking (PDF)
// @Tags         orders
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {file}    binary
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/picking-slip [get]
func (h *OrderHandler) PickingSlip(c *fiber.Ctx) error {
	pdf, filename, err := h.orders.PickingSlip(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(pdf)
}

// Preview godoc
// @Summary      Previsualizar routing
// @Description  Ranking de ubicaciones para una orden borrador, sin reservar ni escribir nada.
// @Tags         routing
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RoutingPreviewRequest  true  "Ítems, dirección y método de envío"
// @Success      200   {object}  dto.RoutingDecisionResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/routing/preview [post]
func (h *OrderHandler) Preview(c *fiber.Ctx) error {
	var in dto.RoutingPreviewRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	method, ok := entity.ParseShippingMethod(in.ShippingMethod)
	if !ok {
		return respondError(c, fmt.Errorf("%w: método de envío %q", domain.ErrInvalidInput, in.ShippingMethod))
	}
	for _, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return respondError(c, fmt.Errorf("%w: cantidad de %s debe ser positiva", domain.ErrInvalidInput, it.VariantID))
		}
	}
	draft := &entity.FulfillmentOrder{
		TenantID:        GetTenantID(c),
		Status:          entity.StatusPending,
		Items:           fromItemsDTO(in.Items),
		ShippingAddress: fromAddressDTO(in.ShippingAddress),
		ShippingMethod:  method,
	}
	decision, err := h.router.Preview(c.UserContext(), draft.TenantID, draft)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toDecisionResponse(decision))
}
