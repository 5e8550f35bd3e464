package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
// El signo de delta debe ser coherente con kind (initial/adjustment_in positivos, adjustment_out negativo).
type RegisterMovementRequest struct {
	VariantID  string          `json:"variant_id" validate:"required,max=100"`
	LocationID string          `json:"location_id" validate:"required,max=100"`
	Delta      decimal.Decimal `json:"delta"`
	Kind       string          `json:"kind" validate:"required,oneof=initial adjustment_in adjustment_out"`
	Reference  string          `json:"reference" validate:"max=200"`
}

// MovementResponse salida de un movimiento del ledger.
type MovementResponse struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	VariantID  string          `json:"variant_id"`
	LocationID string          `json:"location_id"`
	Delta      decimal.Decimal `json:"delta"`
	Kind       string          `json:"kind"`
	Reference  string          `json:"reference,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	RecordedBy string          `json:"recorded_by,omitempty"`
}

// MovementListResponse movimientos de una clave o de una referencia.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// MovementQuery filtros de GET /api/inventory/movements: por clave o por referencia.
type MovementQuery struct {
	VariantID  string `query:"variant_id" validate:"required_without=Reference"`
	LocationID string `query:"location_id" validate:"required_with=VariantID"`
	Reference  string `query:"reference"`
	Limit      int    `query:"limit" validate:"min=0,max=100"`
	Offset     int    `query:"offset" validate:"min=0"`
}

// StockLineRequest línea a reservar.
type StockLineRequest struct {
	VariantID  string          `json:"variant_id" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReserveRequest body para POST /api/inventory/reservations (todas las líneas o ninguna).
type ReserveRequest struct {
	Reference string             `json:"reference" validate:"required,max=200"`
	Lines     []StockLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// TransferRequest body para POST /api/inventory/transfers.
type TransferRequest struct {
	VariantID      string          `json:"variant_id" validate:"required"`
	FromLocationID string          `json:"from_location_id" validate:"required"`
	ToLocationID   string          `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reference      string          `json:"reference" validate:"max=200"`
}

// StockBalanceResponse saldo de una variante en una ubicación.
type StockBalanceResponse struct {
	VariantID  string          `json:"variant_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	LastSeq    int64           `json:"last_seq"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StockQuery parámetros de GET /api/inventory/stock (variant_ids separados por coma).
type StockQuery struct {
	VariantIDs string `query:"variant_ids" validate:"required"`
}

// ReconciliationResponse saldo materializado contra suma del ledger.
type ReconciliationResponse struct {
	VariantID  string          `json:"variant_id"`
	LocationID string          `json:"location_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}
