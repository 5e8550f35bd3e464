package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemRequest línea de una orden.
type OrderItemRequest struct {
	VariantID string          `json:"variant_id" validate:"required,max=100"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShippingAddressDTO dirección de envío.
type ShippingAddressDTO struct {
	Name        string          `json:"name" validate:"max=200"`
	Street      string          `json:"street" validate:"max=300"`
	City        string          `json:"city" validate:"max=100"`
	Province    string          `json:"province" validate:"max=100"`
	PostalCode  string          `json:"postal_code" validate:"max=20"`
	Phone       string          `json:"phone" validate:"max=50"`
	Coordinates *CoordinatesDTO `json:"coordinates,omitempty" validate:"omitempty"`
}

// CreateOrderRequest body para POST /api/orders.
// Con auto_route la orden se rutea en la misma petición.
type CreateOrderRequest struct {
	Channel         string             `json:"channel" validate:"omitempty,oneof=online pos telefono whatsapp"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	ShippingAddress ShippingAddressDTO `json:"shipping_address"`
	ShippingMethod  string             `json:"shipping_method" validate:"omitempty,oneof=standard express same_day"`
	ShippingFee     decimal.Decimal    `json:"shipping_fee"`
	AutoRoute       bool               `json:"auto_route"`
}

// RoutingPreviewRequest body para POST /api/routing/preview (orden borrador, sin escrituras).
type RoutingPreviewRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	ShippingAddress ShippingAddressDTO `json:"shipping_address"`
	ShippingMethod  string             `json:"shipping_method" validate:"omitempty,oneof=standard express same_day"`
}

// AdvanceStatusRequest body para POST /api/orders/:id/status.
type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=preparing shipped delivered"`
}

// OrderListQuery filtros de GET /api/orders.
type OrderListQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=pending analyzing assigned preparing shipped delivered cancelled"`
	Limit  int    `query:"limit" validate:"min=0,max=100"`
	Offset int    `query:"offset" validate:"min=0"`
}

// OrderItemResponse línea de una orden.
type OrderItemResponse struct {
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderResponse salida de una orden de fulfillment.
type OrderResponse struct {
	ID                 string              `json:"id"`
	Number             string              `json:"number"`
	Channel            string              `json:"channel"`
	Status             string              `json:"status"`
	Backordered        bool                `json:"backordered"`
	Items              []OrderItemResponse `json:"items"`
	ShippingAddress    ShippingAddressDTO  `json:"shipping_address"`
	ShippingMethod     string              `json:"shipping_method"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Total              decimal.Decimal     `json:"total"`
	AssignedLocationID *string             `json:"assigned_location_id,omitempty"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	AssignedAt         *time.Time          `json:"assigned_at,omitempty"`
	PreparingAt        *time.Time          `json:"preparing_at,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	RoutingError       *ErrorResponse      `json:"routing_error,omitempty"` // solo con auto_route
}

// OrderListResponse lista paginada de órdenes.
type OrderListResponse struct {
	Items []OrderResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// CandidateScoreDTO puntaje de una ubicación candidata.
type CandidateScoreDTO struct {
	LocationID       string  `json:"location_id"`
	LocationName     string  `json:"location_name"`
	DistanceKm       float64 `json:"distance_km"`
	DistanceScore    float64 `json:"distance_score"`
	ShippingCost     float64 `json:"shipping_cost"`
	CostScore        float64 `json:"cost_score"`
	StockScore       float64 `json:"stock_score"`
	PriorityScore    float64 `json:"priority_score"`
	OperationalCost  float64 `json:"operational_cost"`
	OperationalScore float64 `json:"operational_score"`
	TotalScore       float64 `json:"total_score"`
	ApproxDistance   bool    `json:"approx_distance,omitempty"`
}

// RoutingDecisionResponse decisión de routing con el ranking completo.
type RoutingDecisionResponse struct {
	AlgorithmVersion  string              `json:"algorithm_version"`
	Timestamp         time.Time           `json:"timestamp"`
	Selected          string              `json:"selected"`
	SelectedName      string              `json:"selected_name"`
	Reason            string              `json:"reason"`
	ReasonDescription string              `json:"reason_description"`
	Weights           ScoringWeightsDTO   `json:"weights"`
	Candidates        []CandidateScoreDTO `json:"candidates"`
}

// OrderRoutingResponse respuesta de GET /api/orders/:id/routing.
type OrderRoutingResponse struct {
	OrderID            string                   `json:"order_id"`
	Status             string                   `json:"status"`
	Backordered        bool                     `json:"backordered"`
	AssignedLocationID *string                  `json:"assigned_location_id,omitempty"`
	Decision           *RoutingDecisionResponse `json:"decision,omitempty"`
}
