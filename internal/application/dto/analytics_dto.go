package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoutingAnalyticsDTO respuesta de GET /api/analytics/routing.
type RoutingAnalyticsDTO struct {
	PeriodDays         int                `json:"period_days"`
	Since              time.Time          `json:"since"`
	TotalOrders        int                `json:"total_orders"`
	RoutedOrders       int                `json:"routed_orders"`
	AutoAssignmentRate decimal.Decimal    `json:"auto_assignment_rate"` // % de órdenes con ubicación asignada
	Distribution       []LocationShareDTO `json:"distribution"`
	MostUsedLocation   *LocationShareDTO  `json:"most_used_location,omitempty"`
}

// LocationShareDTO órdenes asignadas a una ubicación en el período.
type LocationShareDTO struct {
	LocationID   string          `json:"location_id"`
	LocationName string          `json:"location_name"`
	Orders       int             `json:"orders"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// RoutingAnalyticsQuery parámetros de la consulta.
type RoutingAnalyticsQuery struct {
	Days int `query:"days" validate:"min=0,max=365"`
}
