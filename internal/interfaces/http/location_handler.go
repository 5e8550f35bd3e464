package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// LocationHandler maneja capacidades de ubicaciones y configuración de routing (protegido).
type LocationHandler struct {
	uc *routing.LocationUseCase
}

// NewLocationHandler construye el handler.
func NewLocationHandler(uc *routing.LocationUseCase) *LocationHandler {
	return &LocationHandler{uc: uc}
}

// Upsert godoc
// @Summary      Crear o actualizar capacidades de una ubicación
// @Tags         locations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la ubicación"
// @Param        body  body  dto.UpsertLocationRequest  true  "Capacidades"
// @Success      200   {object}  dto.LocationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/locations/{id} [put]
func (h *LocationHandler) Upsert(c *fiber.Ctx) error {
	var in dto.UpsertLocationRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	capability := &entity.LocationCapability{
		LocationID:       c.Params("id"),
		TenantID:         GetTenantID(c),
		Name:             in.Name,
		Active:           in.Active,
		CanDispatch:      in.CanDispatch,
		CanReceivePickup: in.CanReceivePickup,
		SupportsStandard: in.SupportsStandard,
		SupportsExpress:  in.SupportsExpress,
		SupportsSameDay:  in.SupportsSameDay,
		Priority:         in.Priority,
		PickingCost:      in.PickingCost,
		PackingCost:      in.PackingCost,
		Coordinates:      fromCoordinatesDTO(in.Coordinates),
	}
	if err := h.uc.UpsertCapability(c.UserContext(), capability); err != nil {
		return respondError(c, err)
	}
	return c.JSON(toLocationResponse(capability))
}

// List godoc
// @Summary      Listar ubicaciones del tenant
// @Tags         locations
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.LocationListResponse
// @Router       /api/locations [get]
func (h *LocationHandler) List(c *fiber.Ctx) error {
	list, err := h.uc.ListCapabilities(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.LocationResponse, 0, len(list))
	for _, l := range list {
		items = append(items, toLocationResponse(l))
	}
	return c.JSON(dto.LocationListResponse{Items: items})
}

// GetSettings godoc
// @Summary      Configuración de routing vigente
// @Tags         settings
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.RoutingSettingsResponse
// @Router       /api/settings/routing [get]
func (h *LocationHandler) GetSettings(c *fiber.Ctx) error {
	s, err := h.uc.Settings(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSettingsResponse(s))
}

// UpdateSettings godoc
// @Summary      Actualizar pesos y tarifas de routing
// @Description  Los pesos deben sumar 1.0. Invalida el snapshot de capacidades del tenant.
// @Tags         settings
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RoutingSettingsRequest  true  "Pesos y tarifas"
// @Success      200   {object}  dto.RoutingSettingsResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/settings/routing [put]
func (h *LocationHandler) UpdateSettings(c *fiber.Ctx) error {
	var in dto.RoutingSettingsRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	s := &entity.RoutingSettings{
		TenantID: GetTenantID(c),
		Weights:  entity.ScoringWeights(in.Weights),
		Rates:    entity.ShippingRates{BaseCost: in.ShippingBaseCost, PerKm: in.ShippingPerKm},
	}
	if err := h.uc.UpdateSettings(c.UserContext(), s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSettingsResponse(s))
}
