package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento del ledger de stock (enumeración cerrada).
type MovementKind string

const (
	MovementInitial       MovementKind = "initial"        // carga inicial de inventario
	MovementSale          MovementKind = "sale"           // venta / reserva
	MovementAdjustmentIn  MovementKind = "adjustment_in"  // ajuste positivo (incluye compensaciones)
	MovementAdjustmentOut MovementKind = "adjustment_out" // ajuste negativo (merma, rotura)
	MovementTransferIn    MovementKind = "transfer_in"    // entrada por traslado
	MovementTransferOut   MovementKind = "transfer_out"   // salida por traslado
)

// MovementKinds lista todos los tipos válidos.
var MovementKinds = []MovementKind{
	MovementInitial, MovementSale,
	MovementAdjustmentIn, MovementAdjustmentOut,
	MovementTransferIn, MovementTransferOut,
}

// ParseMovementKind convierte el string recibido en un MovementKind válido.
func ParseMovementKind(s string) (MovementKind, bool) {
	for _, k := range MovementKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Inbound indica si el tipo de movimiento suma stock (delta positivo).
// Los tipos que no son Inbound restan stock (delta negativo).
func (k MovementKind) Inbound() bool {
	switch k {
	case MovementInitial, MovementAdjustmentIn, MovementTransferIn:
		return true
	case MovementSale, MovementAdjustmentOut, MovementTransferOut:
		return false
	}
	return false
}

// Valid indica si el tipo pertenece a la enumeración.
func (k MovementKind) Valid() bool {
	_, ok := ParseMovementKind(string(k))
	return ok
}

// AcceptsDelta verifica que el signo del delta sea coherente con el tipo.
func (k MovementKind) AcceptsDelta(delta decimal.Decimal) bool {
	if !k.Valid() || delta.IsZero() {
		return false
	}
	if k.Inbound() {
		return delta.IsPositive()
	}
	return delta.IsNegative()
}

// StockMovement entrada inmutable del ledger de stock.
// Una vez escrita nunca se actualiza ni se elimina.
type StockMovement struct {
	ID         string
	Seq        int64 // orden de commit asignado por el store
	VariantID  string
	LocationID string
	Delta      decimal.Decimal // con signo: positivo entra, negativo sale
	Kind       MovementKind
	Reference  string // orden, venta, traslado, nota de ajuste (opcional)
	OccurredAt time.Time
	RecordedBy string // actor que registró el movimiento
}

// Key devuelve la clave (variante, ubicación) del movimiento.
func (m *StockMovement) Key() StockKey {
	return StockKey{VariantID: m.VariantID, LocationID: m.LocationID}
}
