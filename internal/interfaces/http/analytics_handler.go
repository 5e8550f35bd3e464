package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/analytics"
	"github.com/jhoicas/oms-router/internal/application/dto"
)

// AnalyticsHandler maneja los endpoints de analítica de routing.
type AnalyticsHandler struct {
	uc *analytics.RoutingAnalyticsUseCase
}

// NewAnalyticsHandler construye el handler.
func NewAnalyticsHandler(uc *analytics.RoutingAnalyticsUseCase) *AnalyticsHandler {
	return &AnalyticsHandler{uc: uc}
}

// GetRouting godoc
// @Summary      Analítica de routing
// @Description  Tasa de asignación automática y distribución de órdenes por ubicación.
// @Tags         analytics
// @Security     Bearer
// @Produce      json
// @Param        days  query  int  false  "Ventana en días (default 30, max 365)"
// @Success      200  {object}  dto.RoutingAnalyticsDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/analytics/routing [get]
func (h *AnalyticsHandler) GetRouting(c *fiber.Ctx) error {
	var q dto.RoutingAnalyticsQuery
	if err := parseQuery(c, &q); err != nil {
		return handled(err)
	}
	report, err := h.uc.GetSummary(c.UserContext(), GetTenantID(c), q.Days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
