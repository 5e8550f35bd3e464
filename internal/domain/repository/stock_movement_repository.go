package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// StockMovementRepository puerto de persistencia del ledger de stock (solo inserción).
type StockMovementRepository interface {
	// Append inserta el movimiento y le asigna ID (si falta) y Seq.
	Append(ctx context.Context, movement *entity.StockMovement) error
	// ListByKey movimientos de una clave, del más reciente al más antiguo.
	ListByKey(ctx context.Context, key entity.StockKey, limit, offset int) ([]*entity.StockMovement, error)
	// ListByReference movimientos asociados a una referencia (orden, venta, traslado).
	ListByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error)
	// SumByKey suma todos los deltas históricos de la clave (auditoría / conciliación).
	SumByKey(ctx context.Context, key entity.StockKey) (decimal.Decimal, error)
}
