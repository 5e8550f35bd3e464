package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FulfillmentStatus estado de la máquina de estados de una orden.
type FulfillmentStatus string

const (
	StatusPending   FulfillmentStatus = "pending"
	StatusAnalyzing FulfillmentStatus = "analyzing"
	StatusAssigned  FulfillmentStatus = "assigned"
	StatusPreparing FulfillmentStatus = "preparing"
	StatusShipped   FulfillmentStatus = "shipped"
	StatusDelivered FulfillmentStatus = "delivered"
	StatusCancelled FulfillmentStatus = "cancelled"
)

// ParseFulfillmentStatus valida un estado recibido como string.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, bool) {
	switch st := FulfillmentStatus(s); st {
	case StatusPending, StatusAnalyzing, StatusAssigned, StatusPreparing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

// nextStatus avance lineal permitido: ningún estado se salta hacia adelante.
var nextStatus = map[FulfillmentStatus]FulfillmentStatus{
	StatusPending:   StatusAnalyzing,
	StatusAnalyzing: StatusAssigned,
	StatusAssigned:  StatusPreparing,
	StatusPreparing: StatusShipped,
	StatusShipped:   StatusDelivered,
}

// Terminal indica si la orden ya no admite transiciones.
func (s FulfillmentStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable indica si desde este estado se puede cancelar (cualquier estado previo a shipped).
func (s FulfillmentStatus) Cancellable() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusAssigned, StatusPreparing:
		return true
	}
	return false
}

// HoldsStock indica si en este estado la orden tiene stock reservado en su ubicación asignada.
func (s FulfillmentStatus) HoldsStock() bool {
	return s == StatusAssigned || s == StatusPreparing
}

// CanTransitionTo valida una transición de la máquina de estados.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	if next == StatusCancelled {
		return s.Cancellable()
	}
	return nextStatus[s] == next
}

// OrderItem línea solicitada: variante + cantidad.
type OrderItem struct {
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShippingAddress dirección de envío con coordenadas opcionales.
type ShippingAddress struct {
	Name        string       `json:"name"`
	Street      string       `json:"street"`
	City        string       `json:"city"`
	Province    string       `json:"province"`
	PostalCode  string       `json:"postal_code"`
	Phone       string       `json:"phone"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// FulfillmentOrder orden a despachar desde una única ubicación.
// Solo se modifica a través de su máquina de estados hasta llegar a un estado terminal.
type FulfillmentOrder struct {
	ID                 string
	TenantID           string
	Number             string // ORD-2026-00001
	Channel            string // online, pos, telefono, whatsapp
	Items              []OrderItem
	ShippingAddress    ShippingAddress
	ShippingMethod     ShippingMethod
	Subtotal           decimal.Decimal
	Total              decimal.Decimal
	Status             FulfillmentStatus
	Backordered        bool    // en analyzing sin candidato disponible
	AssignedLocationID *string // nil hasta que se decide
	RoutingDecision    *RoutingDecision
	ReservationRef     string // referencia de los movimientos sale de la asignación vigente
	Version            int64  // control de concurrencia optimista
	CreatedAt          time.Time
	AnalyzingAt        *time.Time
	AssignedAt         *time.Time
	PreparingAt        *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
}

// VariantIDs variantes solicitadas, en el orden de las líneas.
func (o *FulfillmentOrder) VariantIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.VariantID)
	}
	return ids
}

// ReservationReference referencia del ledger para la asignación número n de la orden.
func ReservationReference(orderID string, n int64) string {
	return fmt.Sprintf("order:%s:%d", orderID, n)
}

// Holdings cantidades que la orden tiene reservadas en su ubicación asignada.
func (o *FulfillmentOrder) Holdings() map[StockKey]decimal.Decimal {
	held := make(map[StockKey]decimal.Decimal)
	if !o.Status.HoldsStock() || o.AssignedLocationID == nil {
		return held
	}
	for _, l := range o.LinesAt(*o.AssignedLocationID) {
		held[l.Key()] = held[l.Key()].Add(l.Quantity)
	}
	return held
}

// LinesAt líneas de stock de la orden en una ubicación (para reservar o liberar).
func (o *FulfillmentOrder) LinesAt(locationID string) []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, StockLine{VariantID: it.VariantID, LocationID: locationID, Quantity: it.Quantity})
	}
	return lines
}

// TransitionTo aplica una transición que no requiere decisión de routing.
// La transición a assigned solo se logra con Assign.
func (o *FulfillmentOrder) TransitionTo(next FulfillmentStatus, now time.Time) error {
	if next == StatusAssigned {
		return fmt.Errorf("%s -> %s requiere una decisión de routing", o.Status, next)
	}
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s no permitido", o.Status, next)
	}
	o.Status = next
	t := now
	switch next {
	case StatusAnalyzing:
		o.AnalyzingAt = &t
	case StatusPreparing:
		o.PreparingAt = &t
	case StatusShipped:
		o.ShippedAt = &t
	case StatusDelivered:
		o.DeliveredAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	}
	return nil
}

// Assign registra la decisión de routing y mueve la orden a assigned.
// Admite analyzing (primera asignación) o assigned (re-routing).
func (o *FulfillmentOrder) Assign(decision *RoutingDecision, now time.Time) error {
	if o.Status != StatusAnalyzing && o.Status != StatusAssigned {
		return fmt.Errorf("%s -> %s no permitido", o.Status, StatusAssigned)
	}
	if err := decision.Validate(); err != nil {
		return err
	}
	selected := decision.Selected
	t := now
	o.Status = StatusAssigned
	o.Backordered = false
	o.AssignedLocationID = &selected
	o.RoutingDecision = decision
	o.AssignedAt = &t
	return nil
}
